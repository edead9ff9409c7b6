package notifications_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"demodrop/internal/config"
	"demodrop/internal/notifications"
)

func TestNewServiceReturnsNoopWhenKeyMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Email.APIKey = ""
	svc := notifications.NewService(&cfg)
	if err := svc.SendSubmissionConfirmation(context.Background(), "artist@example.com", "Nia", 2); err != nil {
		t.Fatalf("expected noop sender to return nil, got %v", err)
	}
}

func TestSendSubmissionConfirmation(t *testing.T) {
	var captured struct {
		auth string
		body map[string]any
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		payload, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(payload, &captured.body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Email.APIKey = "re_test_key"
	cfg.Email.Endpoint = server.URL
	cfg.Email.From = "Demodrop <demos@example.com>"

	svc := notifications.NewService(&cfg)
	if err := svc.SendSubmissionConfirmation(context.Background(), "artist@example.com", "Nia", 2); err != nil {
		t.Fatalf("SendSubmissionConfirmation: %v", err)
	}

	if captured.auth != "Bearer re_test_key" {
		t.Fatalf("auth header = %q", captured.auth)
	}
	if captured.body["from"] != "Demodrop <demos@example.com>" {
		t.Fatalf("from = %v", captured.body["from"])
	}
	to, _ := captured.body["to"].([]any)
	if len(to) != 1 || to[0] != "artist@example.com" {
		t.Fatalf("to = %v", captured.body["to"])
	}
	html, _ := captured.body["html"].(string)
	if !strings.Contains(html, "Nia") || !strings.Contains(html, "2 tracks") {
		t.Fatalf("html missing expected content: %q", html)
	}
}

func TestSendSurfacesProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid from address"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Email.APIKey = "re_test_key"
	cfg.Email.Endpoint = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.SendSubmissionConfirmation(context.Background(), "artist@example.com", "Nia", 1)
	if err == nil {
		t.Fatal("expected provider error")
	}
	if !strings.Contains(err.Error(), "422") {
		t.Fatalf("error should carry status code: %v", err)
	}
}
