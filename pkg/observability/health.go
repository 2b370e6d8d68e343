package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ErrNotReady is returned by Readiness.Check until MarkReady is called.
var ErrNotReady = errors.New("station index not built yet")

// ReadyCheck reports nil once its subsystem can answer queries.
type ReadyCheck func(ctx context.Context) error

// Readiness is a one-way latch for /readyz. A run flips it after the
// station index is built.
type Readiness struct {
	ready atomic.Bool
}

// MarkReady opens the latch.
func (r *Readiness) MarkReady() { r.ready.Store(true) }

// Check is a ReadyCheck backed by the latch.
func (r *Readiness) Check(context.Context) error {
	if !r.ready.Load() {
		return ErrNotReady
	}

	return nil
}

// HealthHandler answers every request with 200 {"status":"ok"} while the process is up.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeStatus(rw, http.StatusOK, healthStatusOK)
	})
}

// ReadyHandler answers 503 {"status":"unavailable"} while any check fails.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			if check(hr.Context()) != nil {
				writeStatus(rw, http.StatusServiceUnavailable, healthStatusUnavailable)

				return
			}
		}

		writeStatus(rw, http.StatusOK, healthStatusOK)
	})
}

func writeStatus(rw http.ResponseWriter, code int, status string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	writeHealthJSON(rw, status)
}

func writeHealthJSON(w io.Writer, status string) {
	data, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return
	}

	_, _ = w.Write(data)
}
