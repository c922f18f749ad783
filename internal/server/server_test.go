package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AndrewsGM/driver-pro/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testConfig() config.Config {
	return config.Config{ServerPort: ":0", BreakerFailures: 5, BreakerTimeout: time.Second}
}

func TestHealthRoute(t *testing.T) {
	s := NewServer(testConfig(), Resources{Logger: zerolog.Nop()})

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestMetricsRoute(t *testing.T) {
	s := NewServer(testConfig(), Resources{Logger: zerolog.Nop()})

	resp, err := s.App.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "driver_sessions_active") {
		t.Fatalf("expected driver metrics in output")
	}
}

func TestErrorsAreJSON(t *testing.T) {
	s := NewServer(testConfig(), Resources{Logger: zerolog.Nop()})

	resp, err := s.App.Test(httptest.NewRequest("POST", "/drive/sessions", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestDefaultCheckpointsRoute(t *testing.T) {
	s := NewServer(testConfig(), Resources{Logger: zerolog.Nop()})

	resp, err := s.App.Test(httptest.NewRequest("GET", "/exam-routes/default/checkpoints", nil))
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCloseWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewServer(testConfig(), Resources{Redis: rdb, Logger: zerolog.Nop()})
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStartWithoutDatabase(t *testing.T) {
	s := NewServer(testConfig(), Resources{Logger: zerolog.Nop()})
	if s.Query != nil {
		t.Fatalf("expected nil querier without a pool")
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/drive/sessions", strings.NewReader(`{"type":"practice"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "u1")
		resp, err := s.App.Test(req)
		if err != nil {
			t.Fatalf("test request: %v", err)
		}
		if resp.StatusCode != 502 {
			t.Fatalf("attempt %d: expected 502, got %d", i+1, resp.StatusCode)
		}
	}
}
