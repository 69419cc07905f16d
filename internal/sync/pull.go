package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/vaultsyncd/vaultsyncd/internal/hashutil"
	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
)

// applyPull writes or deletes the pulled files in the vault. Files are
// fetched in parallel up to PullWorkers; a failure on one file is recorded
// on the result and never aborts the rest of the batch.
func (e *Engine) applyPull(ctx context.Context, owner, repo, branch string, changes []Change, remote map[string]RemoteFileEntry, res *Result) {
	var mu gosync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PullWorkers)

	for _, c := range changes {
		c := c
		g.Go(func() error {
			err := e.pullOne(ctx, owner, repo, branch, c, remote)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Error("pull failed", "path", c.Path, "error", err)
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", c.Path, err))
				return nil
			}
			if c.Status == StatusDeleted {
				res.FilesDeleted++
			} else {
				res.FilesPulled++
			}
			return nil
		})
	}
	g.Wait()
}

func (e *Engine) pullOne(ctx context.Context, owner, repo, branch string, c Change, remote map[string]RemoteFileEntry) error {
	rf, ok := remote[c.Path]
	if !ok {
		// Deleted remotely. Tolerate a file that already vanished locally.
		return e.vault.Delete(c.Path)
	}

	data, err := e.fetchRemote(ctx, owner, repo, branch, rf)
	if err != nil {
		return err
	}

	if pathutil.IsBinary(c.Path) {
		return e.vault.WriteBinary(c.Path, data)
	}
	return e.vault.WriteText(c.Path, string(data))
}

// FetchRemote fetches and decodes one remote file's content as text.
func (e *Engine) FetchRemote(ctx context.Context, owner, repo, branch string, rf RemoteFileEntry) (string, error) {
	data, err := e.fetchRemote(ctx, owner, repo, branch, rf)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (e *Engine) fetchRemote(ctx context.Context, owner, repo, branch string, rf RemoteFileEntry) ([]byte, error) {
	blob, err := e.transport.GetContents(ctx, owner, repo, rf.RemotePath, branch)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rf.RemotePath, err)
	}
	// The contents API answers with encoding "none" and an empty content
	// field for blobs over 1 MB. Decoding that would write an empty file, so
	// refuse anything that is not an inline base64 payload.
	if blob.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected encoding %q for %s (file too large for the contents API?)", blob.Encoding, rf.RemotePath)
	}

	data, err := hashutil.DecodeBase64(blob.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", rf.RemotePath, err)
	}
	return data, nil
}
