package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vaultsyncd/vaultsyncd/internal/gh"
	"github.com/vaultsyncd/vaultsyncd/internal/hashutil"
	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
	"github.com/vaultsyncd/vaultsyncd/internal/vault"
)

// LocalFileEntry is one local file's observable state at index-build time.
type LocalFileEntry struct {
	Path        string
	ContentHash string
	AddressHash string
	ModTime     time.Time
	Size        int64
	Binary      bool
}

// RemoteFileEntry is one blob of the remote tree, keyed by its local path.
// RemotePath keeps the original repository path needed for content fetches.
type RemoteFileEntry struct {
	Path        string
	RemotePath  string
	AddressHash string
	Size        int64
}

// Options is the immutable configuration of an Engine. It is captured at
// construction so a sync never runs against half-updated settings; build a
// new engine to reconfigure.
type Options struct {
	// Subfolder maps vault paths under a repository prefix. Empty means
	// the vault mirrors the repository root.
	Subfolder string

	// IgnorePatterns are user glob patterns; the state directory and the
	// vault configuration directory are excluded implicitly (the latter
	// unless SyncConfigDir is set).
	IgnorePatterns []string
	SyncConfigDir  bool

	// PullWorkers bounds parallel pull-file operations. Defaults to 4.
	PullWorkers int

	// PushRetries bounds fast-forward retry attempts. Defaults to 3.
	PushRetries int

	// RetryBackoff is multiplied by the attempt number between retries.
	// Defaults to one second.
	RetryBackoff time.Duration
}

// Engine reconciles the vault with a remote branch. All steps of one
// invocation run sequentially; the caller must not run two syncs against
// the same baseline concurrently.
type Engine struct {
	vault     *vault.Store
	transport gh.Transport
	opts      Options
	matcher   *pathutil.Matcher
	logger    *slog.Logger
}

// NewEngine creates a sync engine with the given immutable options.
func NewEngine(store *vault.Store, transport gh.Transport, opts Options, logger *slog.Logger) *Engine {
	if opts.PullWorkers <= 0 {
		opts.PullWorkers = 4
	}
	if opts.PushRetries <= 0 {
		opts.PushRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		vault:     store,
		transport: transport,
		opts:      opts,
		matcher:   pathutil.NewMatcher(pathutil.EffectivePatterns(opts.IgnorePatterns, opts.SyncConfigDir)),
		logger:    logger,
	}
}

// BuildLocalIndex enumerates the vault, excluding ignored paths, and
// computes both hashes for every file. An empty vault yields an empty index.
func (e *Engine) BuildLocalIndex() (map[string]LocalFileEntry, error) {
	index := make(map[string]LocalFileEntry)

	err := e.vault.Walk(func(path string, info os.FileInfo) error {
		if e.matcher.Matches(path) {
			return nil
		}

		binary := pathutil.IsBinary(path)
		data, err := e.vault.ReadBinary(path)
		if err != nil {
			return err
		}

		entry := LocalFileEntry{
			Path:        path,
			ContentHash: hashutil.ContentHash(data),
			AddressHash: hashutil.BlobSHA(data, binary),
			ModTime:     info.ModTime(),
			Size:        info.Size(),
			Binary:      binary,
		}
		index[path] = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build local index: %w", err)
	}

	e.logger.Debug("local index built", "files", len(index))
	return index, nil
}

// BuildRemoteIndex fetches the recursive tree for a branch and maps blobs
// to local paths. Paths outside the configured subfolder are dropped before
// ignore matching; any transport error is fatal for the whole sync.
func (e *Engine) BuildRemoteIndex(ctx context.Context, owner, repo, branch string) (map[string]RemoteFileEntry, error) {
	entries, err := e.transport.GetTree(ctx, owner, repo, branch)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote tree: %w", err)
	}

	index := make(map[string]RemoteFileEntry)
	for _, entry := range entries {
		if entry.Type != gh.TypeBlob {
			continue
		}
		local, ok := pathutil.ToLocal(entry.Path, e.opts.Subfolder)
		if !ok {
			continue
		}
		if e.matcher.Matches(local) {
			continue
		}
		index[local] = RemoteFileEntry{
			Path:        local,
			RemotePath:  entry.Path,
			AddressHash: entry.SHA,
			Size:        entry.Size,
		}
	}

	e.logger.Debug("remote index built", "files", len(index), "branch", branch)
	return index, nil
}
