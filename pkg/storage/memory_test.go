package storage_test

import (
	"testing"

	"mercator-hq/charter/pkg/storage"
	"mercator-hq/charter/pkg/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return storage.NewMemoryStore()
	})
}
