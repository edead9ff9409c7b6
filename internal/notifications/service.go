package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"demodrop/internal/config"
)

const userAgent = "Demodrop-Go/0.1.0"

// Service defines the notification surface exposed to the submission flow.
type Service interface {
	SendSubmissionConfirmation(ctx context.Context, to, artistName string, trackCount int) error
	TestNotification(ctx context.Context, to string) error
}

// NewService builds an email service backed by the configured provider. When
// no API key is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	apiKey := strings.TrimSpace(cfg.Email.APIKey)
	if apiKey == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Email.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &emailService{
		endpoint: cfg.Email.Endpoint,
		apiKey:   apiKey,
		from:     cfg.Email.From,
		client:   &http.Client{Timeout: timeout},
	}
}

type emailService struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

type message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *emailService) SendSubmissionConfirmation(ctx context.Context, to, artistName string, trackCount int) error {
	artistName = strings.TrimSpace(artistName)
	noun := "track"
	if trackCount != 1 {
		noun = "tracks"
	}
	msg := message{
		From:    s.from,
		To:      []string{to},
		Subject: "We received your demo",
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Thanks for sending your demo. We received %d %s and our team will give them a proper listen. You will hear back from us either way.</p>",
			artistName, trackCount, noun),
	}
	return s.send(ctx, msg)
}

func (s *emailService) TestNotification(ctx context.Context, to string) error {
	msg := message{
		From:    s.from,
		To:      []string{to},
		Subject: "Demodrop test notification",
		HTML:    "<p>Email delivery is configured correctly.</p>",
	}
	return s.send(ctx, msg)
}

func (s *emailService) send(ctx context.Context, msg message) error {
	if s == nil || s.client == nil {
		return nil
	}
	if len(msg.To) == 0 || strings.TrimSpace(msg.To[0]) == "" {
		return fmt.Errorf("email has no recipient")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) SendSubmissionConfirmation(context.Context, string, string, int) error { return nil }
func (noopService) TestNotification(context.Context, string) error                        { return nil }
