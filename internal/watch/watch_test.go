package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRelevantPath(t *testing.T) {
	matcher := pathutil.NewMatcher(pathutil.EffectivePatterns([]string{"drafts/**"}, false))
	w := New("/vault", matcher, time.Millisecond, 0, testLogger())

	tests := []struct {
		name string
		path string
		rel  string
		skip bool
	}{
		{"regular file", "/vault/notes/a.md", "notes/a.md", false},
		{"root itself", "/vault", "", true},
		{"outside the vault", "/etc/passwd", "", true},
		{"state directory", "/vault/.vaultsync/baseline.json", "", true},
		{"config directory", "/vault/.obsidian/app.json", "", true},
		{"ignored pattern", "/vault/drafts/wip.md", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, skip := w.relevantPath(tt.path)
			if skip != tt.skip {
				t.Errorf("relevantPath(%q) skip = %v, want %v", tt.path, skip, tt.skip)
			}
			if !skip && rel != tt.rel {
				t.Errorf("relevantPath(%q) = %q, want %q", tt.path, rel, tt.rel)
			}
		})
	}
}

func TestRunTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	matcher := pathutil.NewMatcher(pathutil.EffectivePatterns(nil, false))
	w := New(dir, matcher, 20*time.Millisecond, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	go func() {
		_ = w.Run(ctx, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "note.md"), []byte("hi\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked after file write")
	}
}

func TestRunIgnoresStateDirWrites(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, ".vaultsync")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}

	matcher := pathutil.NewMatcher(pathutil.EffectivePatterns(nil, false))
	w := New(dir, matcher, 20*time.Millisecond, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	go func() {
		_ = w.Run(ctx, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(stateDir, "baseline.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Fatal("state directory write triggered the callback")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRunIntervalTicks(t *testing.T) {
	dir := t.TempDir()
	matcher := pathutil.NewMatcher(pathutil.EffectivePatterns(nil, false))
	w := New(dir, matcher, time.Millisecond, 50*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	go func() {
		_ = w.Run(ctx, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("interval did not trigger a sync")
	}
}
