package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
		},
		{
			name: "all pass",
			checks: map[string]CheckFunc{
				"library": func(context.Context) error { return nil },
				"storage": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"library": func(context.Context) error { return errors.New("no templates loaded") },
				"storage": func(context.Context) error { return nil },
			},
			wantStatus: StatusNotReady,
			wantFailed: []string{"library"},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"evidence": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusNotReady,
			wantFailed: []string{"evidence"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(50 * time.Millisecond)
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Readiness(context.Background())
			if report.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Fatalf("got %d results, want %d", len(report.Checks), len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				if report.Checks[name].Status != StatusFailing {
					t.Errorf("check %q = %+v, want failing", name, report.Checks[name])
				}
			}
		})
	}
}

func TestNames(t *testing.T) {
	c := New(0)
	c.Register("storage", func(context.Context) error { return nil })
	c.Register("library", func(context.Context) error { return nil })
	c.Register("library", func(context.Context) error { return nil })

	names := c.Names()
	if len(names) != 2 || names[0] != "library" || names[1] != "storage" {
		t.Errorf("Names() = %v", names)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	ready := false
	c.Register("library", func(context.Context) error {
		if !ready {
			return errors.New("library not loaded")
		}
		return nil
	})

	mux := http.NewServeMux()
	Mount(mux, c, "1.2.0", "abc123", "2026-10-01T00:00:00Z")

	tests := []struct {
		name     string
		method   string
		path     string
		setReady bool
		wantCode int
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantCode: http.StatusOK},
		{name: "not ready", method: http.MethodGet, path: "/readyz", wantCode: http.StatusServiceUnavailable},
		{name: "ready", method: http.MethodGet, path: "/readyz", setReady: true, wantCode: http.StatusOK},
		{name: "version", method: http.MethodGet, path: "/version", wantCode: http.StatusOK},
		{name: "head", method: http.MethodHead, path: "/healthz", wantCode: http.StatusOK},
		{name: "post rejected", method: http.MethodPost, path: "/healthz", wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready = tt.setReady
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD response has a body")
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "now").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
