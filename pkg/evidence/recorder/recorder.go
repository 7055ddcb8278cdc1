package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/charter/pkg/evidence"
)

// Config contains configuration for the evidence recorder.
type Config struct {
	// Enabled enables evidence recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single storage write and how long Record waits
	// for queue space.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// MaxFieldLength truncates Summary and Error.
	// Default: 500
	MaxFieldLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		AsyncBuffer:    1000,
		WriteTimeout:   5 * time.Second,
		MaxFieldLength: 500,
	}
}

// Recorder records evidence asynchronously.
type Recorder struct {
	storage    evidence.Storage
	config     *Config
	recordChan chan *evidence.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger

	// OnWrite, if set, is called after every storage write attempt. The
	// metrics collector hooks in here.
	OnWrite func(kind evidence.Kind, err error)
}

// NewRecorder creates a recorder writing to storage and starts its worker.
func NewRecorder(storage evidence.Storage, config *Config, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *evidence.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "evidence.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("evidence recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// Record enqueues a copy of rec. ID, RecordedAt and Outcome are filled when
// empty. It returns without waiting for the storage write.
func (r *Recorder) Record(ctx context.Context, rec *evidence.Record) error {
	if !r.config.Enabled {
		return nil
	}

	c := *rec
	if rec.Attributes != nil {
		c.Attributes = make(map[string]string, len(rec.Attributes))
		for k, v := range rec.Attributes {
			c.Attributes[k] = v
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.RecordedAt.IsZero() {
		c.RecordedAt = time.Now().UTC()
	}
	if c.Outcome == "" {
		c.Outcome = evidence.OutcomeSuccess
		if c.Error != "" {
			c.Outcome = evidence.OutcomeError
		}
	}
	c.Summary = TruncateString(c.Summary, r.config.MaxFieldLength)
	c.Error = TruncateString(c.Error, r.config.MaxFieldLength)

	select {
	case <-r.done:
		return evidence.NewRecorderError(c.ID, context.Canceled)
	default:
	}

	select {
	case r.recordChan <- &c:
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("evidence channel full, dropping record",
			"record_id", c.ID,
			"kind", c.Kind,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return evidence.NewRecorderError(c.ID, context.DeadlineExceeded)
	case <-r.done:
		return evidence.NewRecorderError(c.ID, context.Canceled)
	case <-ctx.Done():
		return evidence.NewRecorderError(c.ID, ctx.Err())
	}
}

// Close drains the queue and waits for pending writes. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.logger.Debug("evidence recorder shut down")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordChan:
			r.write(rec)

		case <-r.done:
			for {
				select {
				case rec := <-r.recordChan:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *evidence.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Store(ctx, rec)
	if r.OnWrite != nil {
		r.OnWrite(rec.Kind, err)
	}
	if err != nil {
		r.logger.Error("failed to store evidence record",
			"record_id", rec.ID,
			"kind", rec.Kind,
			"subject_id", rec.SubjectID,
			"error", err,
		)
		return
	}

	duration := time.Since(start)
	r.logger.Debug("evidence recorded",
		"record_id", rec.ID,
		"kind", rec.Kind,
		"subject_id", rec.SubjectID,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", rec.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
