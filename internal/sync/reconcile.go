package sync

import "sort"

// Compare classifies every path present in either index against the
// baseline. Paths whose local and remote blob addresses already agree are
// omitted entirely; the remaining changes come back in sorted path order so
// runs are reproducible.
func Compare(local map[string]LocalFileEntry, remote map[string]RemoteFileEntry, base *Baseline) []Change {
	paths := make(map[string]struct{}, len(local)+len(remote))
	for p := range local {
		paths[p] = struct{}{}
	}
	for p := range remote {
		paths[p] = struct{}{}
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var changes []Change
	for _, path := range sorted {
		lf, inLocal := local[path]
		rf, inRemote := remote[path]

		switch {
		case inLocal && inRemote:
			if lf.AddressHash == rf.AddressHash {
				continue
			}
			baseContent, hasBaseContent := baselineContentHash(base, path)
			baseAddr, hasBaseAddr := baselineAddressHash(base, path)

			localChanged := !hasBaseContent || baseContent != lf.ContentHash
			remoteChanged := !hasBaseAddr || baseAddr != rf.AddressHash

			status := StatusModified
			if localChanged && remoteChanged {
				status = StatusConflict
			}
			changes = append(changes, Change{
				Path:          path,
				Status:        status,
				LocalHash:     lf.AddressHash,
				RemoteHash:    rf.AddressHash,
				InLocal:       true,
				InRemote:      true,
				LocalChanged:  localChanged,
				RemoteChanged: remoteChanged,
			})

		case inLocal:
			// A baseline address entry means the file once existed on the
			// remote, so its absence now is a remote-side deletion. With no
			// baseline entry the file is a fresh local addition.
			_, hasBaseAddr := baselineAddressHash(base, path)
			status := StatusAdded
			if hasBaseAddr {
				status = StatusDeleted
			}
			changes = append(changes, Change{
				Path:         path,
				Status:       status,
				LocalHash:    lf.AddressHash,
				InLocal:      true,
				LocalChanged: status == StatusAdded,
			})

		case inRemote:
			_, hasBaseContent := baselineContentHash(base, path)
			status := StatusAdded
			if hasBaseContent {
				status = StatusDeleted
			}
			changes = append(changes, Change{
				Path:          path,
				Status:        status,
				RemoteHash:    rf.AddressHash,
				InRemote:      true,
				RemoteChanged: status == StatusAdded,
			})
		}
	}
	return changes
}

func baselineContentHash(base *Baseline, path string) (string, bool) {
	if base == nil {
		return "", false
	}
	h, ok := base.ContentHashes[path]
	return h, ok
}

func baselineAddressHash(base *Baseline, path string) (string, bool) {
	if base == nil {
		return "", false
	}
	h, ok := base.AddressHashes[path]
	return h, ok
}

// Partition splits changes into the set applied to the vault (pull), the
// set applied to the remote (push), and the conflicts, honoring the sync
// direction. Conflicts are never applied in either direction; changes the
// direction forbids are counted as skipped.
func Partition(changes []Change, dir Direction) (pull, push, conflicts []Change, skipped int) {
	for _, c := range changes {
		if c.Status == StatusConflict {
			conflicts = append(conflicts, c)
			continue
		}

		var wantPull, wantPush bool
		switch c.Status {
		case StatusAdded:
			wantPull = !c.InLocal
			wantPush = !c.InRemote
		case StatusDeleted:
			// Deleted means one side removed the file; the removal
			// propagates toward the side that still has it.
			wantPull = c.InLocal
			wantPush = c.InRemote
		case StatusModified:
			// A change where neither flag is set (hashes differ but both
			// sides still match the baseline) falls through to skipped.
			wantPull = c.RemoteChanged && !c.LocalChanged
			wantPush = c.LocalChanged && !c.RemoteChanged
		}

		switch {
		case wantPull && dir.allowsPull():
			pull = append(pull, c)
		case wantPush && dir.allowsPush():
			push = append(push, c)
		default:
			skipped++
		}
	}
	return pull, push, conflicts, skipped
}
