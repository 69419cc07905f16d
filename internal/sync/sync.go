package sync

import (
	"context"
	"fmt"
	"time"
)

// Request describes one sync invocation against a repository branch.
type Request struct {
	Owner  string
	Repo   string
	Branch string

	// Message is the commit message used when the push side lands.
	Message string

	// Baseline is the state recorded by the previous successful sync, or
	// nil on first run.
	Baseline *Baseline

	Direction Direction

	// Paths restricts the sync to the named vault paths when non-empty.
	Paths []string

	// DryRun reports what a sync would do without touching either side.
	DryRun bool
}

// Sync runs one full reconciliation pass: index both sides, classify
// against the baseline, apply pulls and pushes per the direction, then
// rebuild the indexes into a fresh baseline. Conflicts are reported and
// left untouched on both sides. A dry run returns the request's baseline
// unchanged; otherwise the returned baseline reflects the post-apply state
// of both sides.
func (e *Engine) Sync(ctx context.Context, req Request) (*Result, *Baseline, error) {
	start := time.Now()
	res := &Result{Success: true}

	local, err := e.BuildLocalIndex()
	if err != nil {
		return nil, nil, err
	}
	remote, err := e.BuildRemoteIndex(ctx, req.Owner, req.Repo, req.Branch)
	if err != nil {
		return nil, nil, err
	}

	changes := Compare(local, remote, req.Baseline)
	if len(req.Paths) > 0 {
		changes = filterPaths(changes, req.Paths)
	}

	pull, push, conflicts, skipped := Partition(changes, req.Direction)
	res.Conflicts = conflictPaths(conflicts)
	res.FilesProcessed = len(pull) + len(push)

	e.logger.Info("reconciled",
		"changes", len(changes),
		"pull", len(pull),
		"push", len(push),
		"conflicts", len(conflicts),
		"skipped", skipped)

	if req.DryRun {
		for _, c := range pull {
			e.logger.Info("would pull", "path", c.Path, "status", c.Status)
		}
		for _, c := range push {
			e.logger.Info("would push", "path", c.Path, "status", c.Status)
		}
		for _, c := range conflicts {
			e.logger.Warn("conflict", "path", c.Path)
		}
		return res, req.Baseline, nil
	}

	e.applyPull(ctx, req.Owner, req.Repo, req.Branch, pull, remote, res)

	if len(push) > 0 {
		ops := e.buildPushOps(push, res)
		commit, err := e.commitBatch(ctx, req.Owner, req.Repo, req.Branch, req.Message, ops)
		if err != nil {
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("push: %v", err))
		} else {
			res.CommitID = commit
			for _, op := range ops {
				if op.action == pushDelete {
					res.FilesDeleted++
				} else {
					res.FilesPushed++
				}
			}
		}
	}

	// Rebuild both indexes so the baseline reflects what the applies
	// actually produced, not what the plan intended.
	local, err = e.BuildLocalIndex()
	if err != nil {
		return res, nil, fmt.Errorf("failed to rebuild local index: %w", err)
	}
	remote, err = e.BuildRemoteIndex(ctx, req.Owner, req.Repo, req.Branch)
	if err != nil {
		return res, nil, fmt.Errorf("failed to rebuild remote index: %w", err)
	}

	// When nothing was pushed the remote head may still have moved since the
	// baseline was written, so resolve it rather than carrying the old value.
	lastCommit := res.CommitID
	if lastCommit == "" {
		ref, err := e.transport.GetRef(ctx, req.Owner, req.Repo, "heads/"+req.Branch)
		if err != nil {
			return res, nil, fmt.Errorf("failed to resolve branch head: %w", err)
		}
		lastCommit = ref.Object.SHA
	}
	base := NewBaseline(local, remote, lastCommit)

	e.logger.Info("sync finished",
		"success", res.Success,
		"pulled", res.FilesPulled,
		"pushed", res.FilesPushed,
		"deleted", res.FilesDeleted,
		"conflicts", len(res.Conflicts),
		"duration", time.Since(start).Round(time.Millisecond))
	return res, base, nil
}

func filterPaths(changes []Change, paths []string) []Change {
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[p] = struct{}{}
	}
	var out []Change
	for _, c := range changes {
		if _, ok := want[c.Path]; ok {
			out = append(out, c)
		}
	}
	return out
}

func conflictPaths(conflicts []Change) []string {
	out := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, c.Path)
	}
	return out
}
