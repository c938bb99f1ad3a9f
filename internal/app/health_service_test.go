package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dokzlo13/wledd/internal/config"
)

func TestHealthService_Ready(t *testing.T) {
	ready := false
	s := NewHealthService(&config.Config{}, func() bool { return ready })
	h := s.Handler()

	tests := []struct {
		path  string
		ready bool
		want  int
	}{
		{"/health", false, http.StatusOK},
		{"/ready", false, http.StatusServiceUnavailable},
		{"/ready", true, http.StatusOK},
		{"/health", true, http.StatusOK},
	}

	for _, tt := range tests {
		ready = tt.ready
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s (ready=%v) = %d, want %d", tt.path, tt.ready, rec.Code, tt.want)
		}
	}
}
