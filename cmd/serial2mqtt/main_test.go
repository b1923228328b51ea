package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/logging"
	"github.com/ncmreynolds/serial2mqtt/internal/journal"
)

// TestRun_InvalidConfig verifies run fails with a missing config file.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SERIAL2MQTT_CONFIG", "/nonexistent/path/serial2mqtt.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidValues verifies validation errors stop startup.
func TestRun_InvalidValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	content := `
bridge:
  id: ""
  encoding: morse
serial:
  url: ""
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("SERIAL2MQTT_CONFIG", configPath)

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail validation")
	}
}

// TestRun_JournalOpenFailure verifies a bad journal path fails before any
// network connection is attempted.
func TestRun_JournalOpenFailure(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write blocker file: %v", err)
	}

	configPath := filepath.Join(tmpDir, "serial2mqtt.toml")
	content := `
[bridge]
id = "test"

[serial]
url = "tcp://127.0.0.1:1"

[journal]
enabled = true
path = "` + filepath.Join(blocker, "journal.db") + `"

[logging]
level = "error"
format = "text"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("SERIAL2MQTT_CONFIG", configPath)

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail when the journal cannot be opened")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("SERIAL2MQTT_CONFIG", "")
		if got := getConfigPath(); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("SERIAL2MQTT_CONFIG", "/etc/serial2mqtt.toml")
		if got := getConfigPath(); got != "/etc/serial2mqtt.toml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})
}

// pruneRecorder implements journal.Repository, recording Prune cutoffs.
type pruneRecorder struct {
	mu      sync.Mutex
	cutoffs []time.Time
	calls   chan struct{}
}

func (p *pruneRecorder) Record(context.Context, journal.Entry) error { return nil }
func (p *pruneRecorder) Recent(context.Context, int) ([]journal.Entry, error) {
	return nil, nil
}
func (p *pruneRecorder) CountByTopic(context.Context, string) (int, error) { return 0, nil }

func (p *pruneRecorder) Prune(_ context.Context, before time.Time) (int64, error) {
	p.mu.Lock()
	p.cutoffs = append(p.cutoffs, before)
	p.mu.Unlock()
	p.calls <- struct{}{}
	return 1, nil
}

func TestPruneJournal(t *testing.T) {
	repo := &pruneRecorder{calls: make(chan struct{}, 1)}
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pruneJournal(ctx, repo, 24*time.Hour, log)
		close(done)
	}()

	select {
	case <-repo.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("pruneJournal did not prune on start")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruneJournal did not return after cancel")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	age := time.Since(repo.cutoffs[0])
	if age < 24*time.Hour || age > 24*time.Hour+time.Minute {
		t.Errorf("cutoff age = %v, want about 24h", age)
	}
}

func TestOptionalCollaborators(t *testing.T) {
	if optionalJournal(nil) != nil {
		t.Error("optionalJournal(nil) should be an untyped nil")
	}
	if optionalMetrics(nil) != nil {
		t.Error("optionalMetrics(nil) should be an untyped nil")
	}
}
