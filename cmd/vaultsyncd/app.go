package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vaultsyncd/vaultsyncd/internal/config"
	"github.com/vaultsyncd/vaultsyncd/internal/diff"
	"github.com/vaultsyncd/vaultsyncd/internal/gh"
	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
	"github.com/vaultsyncd/vaultsyncd/internal/sync"
	"github.com/vaultsyncd/vaultsyncd/internal/vault"
	"github.com/vaultsyncd/vaultsyncd/internal/watch"
	"github.com/vaultsyncd/vaultsyncd/internal/webhook"
)

// app wires the configuration into a ready-to-run engine plus the
// surrounding state handling (baseline file, lock file).
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *vault.Store
	engine *sync.Engine
}

type syncOptions struct {
	dryRun    bool
	direction string
	message   string
	paths     []string
}

func newApp(logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}

	store := vault.NewOS(cfg.Vault.Dir)
	client := gh.NewClient(token, logger)
	engine := sync.NewEngine(store, client, sync.Options{
		Subfolder:      cfg.Repo.Subfolder,
		IgnorePatterns: cfg.Sync.Ignore,
		SyncConfigDir:  cfg.Sync.SyncConfigDir,
		PullWorkers:    cfg.Sync.PullWorkers,
		PushRetries:    cfg.Sync.PushRetries,
	}, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		engine: engine,
	}, nil
}

// syncOnce runs a single locked sync pass and persists the new baseline.
func (a *app) syncOnce(ctx context.Context, opts syncOptions) error {
	dir := a.cfg.Sync.Direction
	if opts.direction != "" {
		dir = opts.direction
	}
	direction, err := sync.ParseDirection(dir)
	if err != nil {
		return err
	}

	msg := a.cfg.Sync.CommitMessage
	if opts.message != "" {
		msg = opts.message
	}

	if !opts.dryRun {
		release, err := a.acquireLock()
		if err != nil {
			return err
		}
		defer release()
	}

	baseline, err := sync.LoadBaseline(a.cfg.BaselinePath())
	if err != nil {
		return err
	}
	if baseline == nil {
		a.logger.Info("no baseline found, treating this as the first sync")
	}

	res, newBaseline, err := a.engine.Sync(ctx, sync.Request{
		Owner:     a.cfg.Repo.Owner,
		Repo:      a.cfg.Repo.Name,
		Branch:    a.cfg.Repo.Branch,
		Message:   msg,
		Baseline:  baseline,
		Direction: direction,
		Paths:     opts.paths,
		DryRun:    opts.dryRun,
	})
	if err != nil {
		return err
	}

	for _, path := range res.Conflicts {
		a.logger.Warn("conflict, left untouched on both sides", "path", path)
	}

	if !opts.dryRun {
		if err := sync.SaveBaseline(a.cfg.BaselinePath(), newBaseline); err != nil {
			return err
		}
	}

	if !res.Success {
		return fmt.Errorf("sync finished with %d errors", len(res.Errors))
	}
	return nil
}

// status prints the pending change set without applying anything.
func (a *app) status(ctx context.Context, w io.Writer) error {
	changes, _, err := a.pendingChanges(ctx)
	if err != nil {
		return err
	}

	if len(changes) == 0 {
		fmt.Fprintln(w, "vault and repository are in sync")
		return nil
	}

	for _, c := range changes {
		side := "remote"
		if c.LocalChanged && !c.RemoteChanged {
			side = "local"
		} else if c.LocalChanged && c.RemoteChanged {
			side = "both"
		}
		fmt.Fprintf(w, "%-10s %-6s %s\n", c.Status, side, c.Path)
	}
	fmt.Fprintf(w, "\n%d pending changes\n", len(changes))
	return nil
}

// diff prints unified line diffs for text files that differ between the
// vault and the remote. Binary files are listed but not diffed.
func (a *app) diff(ctx context.Context, w io.Writer, paths []string) error {
	changes, remote, err := a.pendingChanges(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[pathutil.Normalize(p)] = true
	}

	for _, c := range changes {
		if len(want) > 0 && !want[c.Path] {
			continue
		}
		if !c.InLocal || !c.InRemote {
			fmt.Fprintf(w, "%s: %s\n", c.Status, c.Path)
			continue
		}
		if pathutil.IsBinary(c.Path) {
			fmt.Fprintf(w, "binary files differ: %s\n", c.Path)
			continue
		}

		local, err := a.store.ReadText(c.Path)
		if err != nil {
			return err
		}
		rf := remote[c.Path]
		blob, err := a.engine.FetchRemote(ctx, a.cfg.Repo.Owner, a.cfg.Repo.Name, a.cfg.Repo.Branch, rf)
		if err != nil {
			return err
		}

		result := diff.ComputeContext(blob, local, 3)
		if !result.HasChanges() {
			continue
		}
		fmt.Fprint(w, result.Unified("remote/"+c.Path, "local/"+c.Path))
	}
	return nil
}

// pendingChanges builds both indexes and classifies them against the
// stored baseline, sorted by path.
func (a *app) pendingChanges(ctx context.Context) ([]sync.Change, map[string]sync.RemoteFileEntry, error) {
	baseline, err := sync.LoadBaseline(a.cfg.BaselinePath())
	if err != nil {
		return nil, nil, err
	}
	local, err := a.engine.BuildLocalIndex()
	if err != nil {
		return nil, nil, err
	}
	remote, err := a.engine.BuildRemoteIndex(ctx, a.cfg.Repo.Owner, a.cfg.Repo.Name, a.cfg.Repo.Branch)
	if err != nil {
		return nil, nil, err
	}

	changes := sync.Compare(local, remote, baseline)
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, remote, nil
}

// watch syncs whenever vault activity settles, plus on the configured
// interval so remote-side changes are eventually pulled too.
func (a *app) watch(ctx context.Context) error {
	matcher := pathutil.NewMatcher(pathutil.EffectivePatterns(a.cfg.Sync.Ignore, a.cfg.Sync.SyncConfigDir))
	watcher := watch.New(a.cfg.Vault.Dir, matcher, a.cfg.Watch.Debounce, a.cfg.Watch.Interval, a.logger)

	err := watcher.Run(ctx, func() {
		if err := a.syncOnce(ctx, syncOptions{}); err != nil {
			a.logger.Error("sync failed", "error", err)
		}
	})
	if err == context.Canceled {
		return nil
	}
	return err
}

// serve runs the webhook server; every accepted push event triggers a sync.
func (a *app) serve(ctx context.Context) error {
	if !a.cfg.Serve.Enabled {
		return fmt.Errorf("serve is not enabled in the configuration")
	}
	// Push events mean the remote moved, so serve mode only pulls; local
	// edits are for sync or watch runs.
	server, err := webhook.NewServer(a.cfg, syncerFunc(func(ctx context.Context) error {
		return a.syncOnce(ctx, syncOptions{direction: "pull"})
	}), a.logger)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

type syncerFunc func(ctx context.Context) error

func (f syncerFunc) Run(ctx context.Context) error { return f(ctx) }

// acquireLock creates the lock file exclusively, recording the pid. A
// remaining lock from a crashed run must be removed by hand.
func (a *app) acquireLock() (func(), error) {
	path := a.cfg.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			pid, _ := os.ReadFile(path)
			return nil, fmt.Errorf("another sync appears to be running (lock %s held by pid %s); remove the file if it is stale",
				path, strings.TrimSpace(string(pid)))
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()

	return func() {
		if err := os.Remove(path); err != nil {
			a.logger.Warn("failed to remove lock file", "path", path, "error", err)
		}
	}, nil
}
