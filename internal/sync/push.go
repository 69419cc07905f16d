package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vaultsyncd/vaultsyncd/internal/gh"
	"github.com/vaultsyncd/vaultsyncd/internal/hashutil"
	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
)

type pushAction int

const (
	pushUpsert pushAction = iota
	pushDelete
)

// pushOp is one file's contribution to the batch commit. Content is held
// in memory until the commit lands so every retry attempt pushes the same
// bytes the reconciliation saw.
type pushOp struct {
	path       string
	remotePath string
	action     pushAction
	content    []byte
	binary     bool
}

// buildPushOps reads the local side of every push change. A file that
// cannot be read is dropped from the batch with an error on the result;
// the rest of the batch still commits.
func (e *Engine) buildPushOps(changes []Change, res *Result) []pushOp {
	var ops []pushOp
	for _, c := range changes {
		op := pushOp{
			path:       c.Path,
			remotePath: pathutil.ToRemote(c.Path, e.opts.Subfolder),
		}

		if c.Status == StatusDeleted {
			op.action = pushDelete
			ops = append(ops, op)
			continue
		}

		op.binary = pathutil.IsBinary(c.Path)
		data, err := e.vault.ReadBinary(c.Path)
		if err != nil {
			e.logger.Error("push read failed", "path", c.Path, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", c.Path, err))
			continue
		}
		if !op.binary {
			data = []byte(hashutil.NormalizeLineEndings(string(data)))
		}
		op.content = data
		ops = append(ops, op)
	}
	return ops
}

// commitBatch lands all push operations as a single commit on the branch.
// On a non-fast-forward rejection the whole attempt (blobs included) is
// rebuilt against the freshly resolved head, up to PushRetries times with
// a linearly growing backoff. Any other transport error fails immediately.
func (e *Engine) commitBatch(ctx context.Context, owner, repo, branch, message string, ops []pushOp) (string, error) {
	if len(ops) == 0 {
		return "", nil
	}
	message = expandMessage(message, len(ops))
	refName := "heads/" + branch

	var lastErr error
	for attempt := 1; attempt <= e.opts.PushRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt-1) * e.opts.RetryBackoff):
			}
			e.logger.Info("retrying push", "attempt", attempt, "branch", branch)
		}

		ref, err := e.transport.GetRef(ctx, owner, repo, refName)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", refName, err)
		}
		head := ref.Object.SHA

		headCommit, err := e.transport.GetCommit(ctx, owner, repo, head)
		if err != nil {
			return "", fmt.Errorf("failed to read head commit: %w", err)
		}

		specs := make([]gh.TreeSpec, 0, len(ops))
		for _, op := range ops {
			spec := gh.TreeSpec{
				Path: op.remotePath,
				Mode: gh.ModeFile,
				Type: gh.TypeBlob,
			}
			if op.action == pushDelete {
				specs = append(specs, spec)
				continue
			}
			sha, err := e.transport.CreateBlob(ctx, owner, repo, hashutil.EncodeBase64(op.content))
			if err != nil {
				return "", fmt.Errorf("failed to create blob for %s: %w", op.path, err)
			}
			spec.SHA = &sha
			specs = append(specs, spec)
		}

		tree, err := e.transport.CreateTree(ctx, owner, repo, headCommit.TreeSHA, specs)
		if err != nil {
			return "", fmt.Errorf("failed to create tree: %w", err)
		}
		if tree.SHA == headCommit.TreeSHA {
			// Nothing actually changed relative to the head. Skip the
			// empty commit and report the head as the sync point.
			e.logger.Info("push is a no-op", "branch", branch, "commit", head)
			return head, nil
		}

		commit, err := e.transport.CreateCommit(ctx, owner, repo, message, tree.SHA, []string{head})
		if err != nil {
			return "", fmt.Errorf("failed to create commit: %w", err)
		}

		if _, err := e.transport.UpdateRef(ctx, owner, repo, refName, commit.SHA, false); err != nil {
			if gh.IsNotFastForward(err) {
				e.logger.Warn("push rejected, branch moved", "branch", branch, "attempt", attempt)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("failed to update %s: %w", refName, err)
		}

		e.logger.Info("pushed commit", "branch", branch, "commit", commit.SHA, "files", len(ops))
		return commit.SHA, nil
	}
	return "", fmt.Errorf("push did not land after %d attempts: %w", e.opts.PushRetries, lastErr)
}

// expandMessage fills the commit message template placeholders: {{files}}
// with the batch size and {{date}} with the current UTC time.
func expandMessage(message string, files int) string {
	return strings.NewReplacer(
		"{{files}}", strconv.Itoa(files),
		"{{date}}", time.Now().UTC().Format("2006-01-02 15:04"),
	).Replace(message)
}
