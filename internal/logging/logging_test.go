package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info().Msg("hidden")
	log.Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line emitted despite warn level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn line missing")
	}
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "chatty", Output: &buf})
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", log.GetLevel())
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})
	scoped := Component(log, "scraper")
	scoped.Info().Msg("ready")

	if !strings.Contains(buf.String(), `"component":"scraper"`) {
		t.Errorf("component field missing: %s", buf.String())
	}
}
