package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"

	"demodrop/internal/config"
	"demodrop/internal/logging"
	"demodrop/internal/records"
)

func newCommandLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatBitrate(bps int64) string {
	if bps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d kbps", bps/1000)
}

func formatSampleRate(hz int64) string {
	if hz <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f kHz", float64(hz)/1000)
}

func formatAge(sub *records.Submission) string {
	if sub.CreatedAt.IsZero() {
		return "-"
	}
	return humanize.Time(sub.CreatedAt)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
