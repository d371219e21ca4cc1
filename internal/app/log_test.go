package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLineHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			level:   slog.LevelInfo,
			message: "article added",
			want:    "2024-06-15T14:30:45Z\tINFO\top-1\tarticle added\n",
		},
		{
			name:    "with attrs",
			level:   slog.LevelWarn,
			message: "refresh failed",
			attrs:   []slog.Attr{slog.String("article", "en:Go"), slog.Int("attempt", 2)},
			want:    "2024-06-15T14:30:45Z\tWARN\top-1\trefresh failed\tarticle=en:Go\tattempt=2\n",
		},
		{
			name:    "group attr is flattened",
			level:   slog.LevelDebug,
			message: "fetched",
			attrs:   []slog.Attr{slog.Group("page", slog.String("title", "Go"), slog.Int("rows", 3))},
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-1\tfetched\tpage.title=Go\tpage.rows=3\n",
		},
		{
			name:    "empty attr is skipped",
			level:   slog.LevelError,
			message: "boom",
			attrs:   []slog.Attr{{}},
			want:    "2024-06-15T14:30:45Z\tERROR\top-1\tboom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &lineHandler{w: &buf, min: slog.LevelDebug, opID: "op-1"}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	var h slog.Handler = &lineHandler{w: &buf, min: slog.LevelDebug, opID: "op-1"}
	h = h.WithAttrs([]slog.Attr{slog.String("component", "wiki")})
	h = h.WithGroup("req")
	h = h.WithAttrs([]slog.Attr{slog.String("region", "nl")})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "fetch", 0)
	r.AddAttrs(slog.Int("status", 200))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"\tcomponent=wiki", "\treq.region=nl", "\treq.status=200"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestLineHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &lineHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*lineHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestLineHandler_Enabled(t *testing.T) {
	h := &lineHandler{min: slog.LevelWarn}

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var stderr bytes.Buffer

	logger, f, err := newLogger(dir, "test-op", &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, "wikiwatch.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	for _, want := range []string{"debug line", "info line", "warn line", "\ttest-op\t"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q:\n%s", want, data)
		}
	}

	if strings.Contains(stderr.String(), "info line") || strings.Contains(stderr.String(), "debug line") {
		t.Errorf("stderr should only carry warnings, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "warn line") {
		t.Errorf("stderr missing warning, got %q", stderr.String())
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := &slogAdapter{l: slog.New(&lineHandler{w: &buf, min: slog.LevelDebug, opID: "op"})}

	a.Debug("d")
	a.Info("i")
	a.Warn("w", "k", "v")
	a.Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[2], "\tw\tk=v") {
		t.Errorf("warn line = %q", lines[2])
	}
}
