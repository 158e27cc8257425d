package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/regbot/core/config"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSinkWriterRoutesByComponent(t *testing.T) {
	all, reg := &bytes.Buffer{}, &bytes.Buffer{}
	w := newSinkWriter([]sink{
		writerSink("all", all),
		componentSink("reg", registrationComponent, reg),
	})

	for _, c := range []string{"tg", registrationComponent, "service.registrationx", registrationComponent + ".janitor"} {
		if err := w.WriteLine(c, []byte(c+"\n")); err != nil {
			t.Fatalf("write %s: %v", c, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := strings.Count(all.String(), "\n"); got != 4 {
		t.Fatalf("unfiltered sink got %d lines: %q", got, all.String())
	}
	want := registrationComponent + "\n" + registrationComponent + ".janitor\n"
	if reg.String() != want {
		t.Fatalf("registration sink = %q, want %q", reg.String(), want)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSinkWriterAfterClose(t *testing.T) {
	w := newSinkWriter([]sink{writerSink("buf", &bytes.Buffer{})})
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.WriteLine("tg", []byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v, want errWriterClosed", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSinkWriterReportsSinkFailure(t *testing.T) {
	w := newSinkWriter([]sink{writerSink("bad", failingWriter{})})
	_ = w.WriteLine("tg", []byte("x\n"))
	if err := w.Close(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("close = %v, want disk full", err)
	}
}

func TestBuildSinksRegistrationFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &coreconfig.Config{}
	cfg.Logging.Dir = dir
	cfg.Logging.BotFile = "bot.log"
	cfg.Logging.RegistrationFile = "registration.log"

	sinks, closers := buildSinks(cfg)
	if len(sinks) != 3 || len(closers) != 2 {
		t.Fatalf("got %d sinks and %d closers", len(sinks), len(closers))
	}
	// Drop stdout so the test output stays clean.
	w := newSinkWriter(sinks[1:])
	handler := newStructuredHandler(handlerConfig{level: slog.LevelInfo, writer: w, format: formatKV})
	log := slog.New(handler)
	LogEvent(Background(), log.With("component", "tg"), slog.LevelInfo, "update.received")
	LogEvent(Background(), log.With("component", registrationComponent), slog.LevelInfo, "registration.started")
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			t.Fatalf("close file: %v", err)
		}
	}

	bot, err := os.ReadFile(filepath.Join(dir, "bot.log"))
	if err != nil {
		t.Fatal(err)
	}
	reg, err := os.ReadFile(filepath.Join(dir, "registration.log"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(bot), "\n") != 2 {
		t.Fatalf("bot.log = %q", bot)
	}
	if !strings.Contains(string(reg), "event=registration.started") || strings.Contains(string(reg), "update.received") {
		t.Fatalf("registration.log = %q", reg)
	}
}

func TestBuildSinksWithoutDir(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Logging.RegistrationFile = "registration.log"
	sinks, closers := buildSinks(cfg)
	if len(sinks) != 1 || len(closers) != 0 {
		t.Fatalf("got %d sinks and %d closers, want stdout only", len(sinks), len(closers))
	}
}
