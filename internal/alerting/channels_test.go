package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nettriage/internal/schema"
)

func TestWebhookChannel_Send(t *testing.T) {
	var gotBody []byte
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-Auth-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("ops", srv.URL, map[string]string{"X-Auth-Token": "secret"})
	if got := ch.Name(); got != "ops" {
		t.Errorf("Name() = %q, want %q", got, "ops")
	}

	alert := newAlert(schema.PriorityP2, time.Now())
	if err := ch.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotHeader != "secret" {
		t.Errorf("X-Auth-Token = %q, want %q", gotHeader, "secret")
	}

	var decoded schema.EnrichedAlert
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("payload is not a valid alert: %v", err)
	}
	if decoded.ID != alert.ID {
		t.Errorf("payload ID = %v, want %v", decoded.ID, alert.ID)
	}
}

func TestWebhookChannel_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("ops", srv.URL, nil)
	err := ch.Send(context.Background(), newAlert(schema.PriorityP2, time.Now()))
	if err == nil {
		t.Fatal("Send() error = nil, want error on 403")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("Send() error = %v, want status code mentioned", err)
	}
}

func TestSlackChannel_Send(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("slack payload is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewSlackChannel(srv.URL, "#network-alerts", "nettriage")
	if got := ch.Name(); got != "slack" {
		t.Errorf("Name() = %q, want %q", got, "slack")
	}

	alert := newAlert(schema.PriorityP1, time.Now())
	alert.Severity = schema.SeverityCritical
	alert.ProbableRootCause = "link failure on spine-01"
	if err := ch.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if payload["channel"] != "#network-alerts" {
		t.Errorf("channel = %v, want #network-alerts", payload["channel"])
	}
	if payload["username"] != "nettriage" {
		t.Errorf("username = %v, want nettriage", payload["username"])
	}
	attachments, ok := payload["attachments"].([]interface{})
	if !ok || len(attachments) != 1 {
		t.Fatalf("attachments = %v, want one attachment", payload["attachments"])
	}
	att := attachments[0].(map[string]interface{})
	if att["color"] != "#FF0000" {
		t.Errorf("color = %v, want #FF0000 for critical", att["color"])
	}
	title, _ := att["title"].(string)
	if !strings.Contains(title, "P1") || !strings.Contains(title, "spine-01") {
		t.Errorf("title = %q, want priority and root cause present", title)
	}
}

func TestSlackChannel_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := NewSlackChannel(srv.URL, "#network-alerts", "nettriage")
	err := ch.Send(context.Background(), newAlert(schema.PriorityP2, time.Now()))
	if err == nil {
		t.Fatal("Send() error = nil, want error on 400")
	}
}
