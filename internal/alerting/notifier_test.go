package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func sampleNotification() Notification {
	return Notification{
		CheckedAt:   time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC),
		PeriodStart: "2025-01-01",
		PeriodEnd:   "2025-01-02",
		Type:        "low_conversion",
		Severity:    "high",
		Message:     "conversion dropped below threshold",
		Details:     json.RawMessage(`{"metric": "conversion", "value": 0.8}`),
		Funnel:      map[string]float64{"leads": 120, "purchases": 4},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottoken/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.HasPrefix(received["text"], "[HIGH] low_conversion") {
		t.Fatalf("unexpected text %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleNotification())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected ok=false error, got %v", err)
	}
}

func TestTelegramNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("expected status error")
	}
}

func TestRenderMessage(t *testing.T) {
	text := RenderMessage(sampleNotification())
	for _, want := range []string{
		"Period: 2025-01-01 -> 2025-01-02",
		"Checked: 2025-01-02T09:00:00Z UTC",
		"leads: 120\npurchases: 4\n",
		`Details: {"metric":"conversion","value":0.8}`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
