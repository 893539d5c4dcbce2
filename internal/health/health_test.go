package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/patchbay-voice/patchbay/internal/health"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := health.New(nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := decode(t, rec); body["status"] != "ok" {
		t.Errorf("body status = %v, want ok", body["status"])
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	t.Parallel()
	h := health.New(nil,
		health.Checker{Name: "archive", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "recognizer", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	checks := body["checks"].(map[string]any)
	if checks["archive"] != "ok" || checks["recognizer"] != "ok" {
		t.Errorf("checks = %v, want all ok", checks)
	}
}

func TestReadyz_FailingCheckerReports503(t *testing.T) {
	t.Parallel()
	h := health.New(nil,
		health.Checker{Name: "archive", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	body := decode(t, rec)
	checks := body["checks"].(map[string]any)
	if checks["archive"] != "fail: connection refused" {
		t.Errorf("archive check = %v, want failure message", checks["archive"])
	}
}

func TestStatusz_ReportsRelaySnapshot(t *testing.T) {
	t.Parallel()
	h := health.New(func() health.RelaySnapshot {
		return health.RelaySnapshot{CodesAvailable: 97, GameLegs: 3}
	})
	rec := httptest.NewRecorder()
	h.Statusz(rec, httptest.NewRequest(http.MethodGet, "/statusz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	relay := body["relay"].(map[string]any)
	if relay["codes_available"] != float64(97) || relay["game_legs"] != float64(3) {
		t.Errorf("relay snapshot = %v, want 97 available / 3 legs", relay)
	}
}

func TestRegister_Routes(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	health.New(nil).Register(mux)

	for _, path := range []string{"/healthz", "/readyz", "/statusz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
