package sync

import (
	"testing"
)

func localEntry(path, content, address string) LocalFileEntry {
	return LocalFileEntry{Path: path, ContentHash: content, AddressHash: address}
}

func remoteEntry(path, address string) RemoteFileEntry {
	return RemoteFileEntry{Path: path, RemotePath: path, AddressHash: address}
}

func baselineWith(path, content, address string) *Baseline {
	return &Baseline{
		Version:       baselineVersion,
		ContentHashes: map[string]string{path: content},
		AddressHashes: map[string]string{path: address},
	}
}

func TestCompareClassification(t *testing.T) {
	tests := []struct {
		name   string
		local  map[string]LocalFileEntry
		remote map[string]RemoteFileEntry
		base   *Baseline
		want   Status
	}{
		{
			name:   "local only without baseline is added",
			local:  map[string]LocalFileEntry{"a.md": localEntry("a.md", "c1", "s1")},
			remote: map[string]RemoteFileEntry{},
			base:   nil,
			want:   StatusAdded,
		},
		{
			name:   "local only with baseline address is deleted remotely",
			local:  map[string]LocalFileEntry{"a.md": localEntry("a.md", "c1", "s1")},
			remote: map[string]RemoteFileEntry{},
			base:   baselineWith("a.md", "c1", "s1"),
			want:   StatusDeleted,
		},
		{
			name:   "remote only without baseline is added",
			local:  map[string]LocalFileEntry{},
			remote: map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s1")},
			base:   nil,
			want:   StatusAdded,
		},
		{
			name:   "remote only with baseline content is deleted locally",
			local:  map[string]LocalFileEntry{},
			remote: map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s1")},
			base:   baselineWith("a.md", "c1", "s1"),
			want:   StatusDeleted,
		},
		{
			name:   "only local moved from baseline is modified",
			local:  map[string]LocalFileEntry{"a.md": localEntry("a.md", "c2", "s2")},
			remote: map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s1")},
			base:   baselineWith("a.md", "c1", "s1"),
			want:   StatusModified,
		},
		{
			name:   "only remote moved from baseline is modified",
			local:  map[string]LocalFileEntry{"a.md": localEntry("a.md", "c1", "s1")},
			remote: map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s2")},
			base:   baselineWith("a.md", "c1", "s1"),
			want:   StatusModified,
		},
		{
			name:   "both moved from baseline is conflict",
			local:  map[string]LocalFileEntry{"a.md": localEntry("a.md", "c2", "s2")},
			remote: map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s3")},
			base:   baselineWith("a.md", "c1", "s1"),
			want:   StatusConflict,
		},
		{
			name:   "both sides differ with no baseline is conflict",
			local:  map[string]LocalFileEntry{"a.md": localEntry("a.md", "c1", "s1")},
			remote: map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s2")},
			base:   nil,
			want:   StatusConflict,
		},
		{
			name:   "both match baseline but differ from each other stays modified",
			local:  map[string]LocalFileEntry{"a.md": localEntry("a.md", "c1", "s1")},
			remote: map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s2")},
			base:   baselineWith("a.md", "c1", "s2"),
			want:   StatusModified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Compare(tt.local, tt.remote, tt.base)
			if len(changes) != 1 {
				t.Fatalf("expected 1 change, got %d", len(changes))
			}
			if changes[0].Status != tt.want {
				t.Errorf("status = %q, want %q", changes[0].Status, tt.want)
			}
		})
	}
}

func TestCompareDropsMatchingAddresses(t *testing.T) {
	local := map[string]LocalFileEntry{"a.md": localEntry("a.md", "c1", "s1")}
	remote := map[string]RemoteFileEntry{"a.md": remoteEntry("a.md", "s1")}

	changes := Compare(local, remote, nil)
	if len(changes) != 0 {
		t.Fatalf("expected no changes for matching addresses, got %d", len(changes))
	}
}

func TestCompareDeterministicOrder(t *testing.T) {
	local := map[string]LocalFileEntry{
		"c.md": localEntry("c.md", "c1", "s1"),
		"a.md": localEntry("a.md", "c2", "s2"),
		"b.md": localEntry("b.md", "c3", "s3"),
	}

	changes := Compare(local, nil, nil)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	for i, want := range []string{"a.md", "b.md", "c.md"} {
		if changes[i].Path != want {
			t.Errorf("changes[%d].Path = %q, want %q", i, changes[i].Path, want)
		}
	}
}

func TestPartitionDirections(t *testing.T) {
	changes := []Change{
		// Added remotely, pulls.
		{Path: "remote-add.md", Status: StatusAdded, InRemote: true, RemoteChanged: true},
		// Added locally, pushes.
		{Path: "local-add.md", Status: StatusAdded, InLocal: true, LocalChanged: true},
		// Remote deletion, removes the local copy via pull.
		{Path: "remote-del.md", Status: StatusDeleted, InLocal: true},
		// Local deletion, removes the remote copy via push.
		{Path: "local-del.md", Status: StatusDeleted, InRemote: true},
		// Remote edit, pulls.
		{Path: "remote-mod.md", Status: StatusModified, InLocal: true, InRemote: true, RemoteChanged: true},
		// Local edit, pushes.
		{Path: "local-mod.md", Status: StatusModified, InLocal: true, InRemote: true, LocalChanged: true},
		// Conflicts never land in either set.
		{Path: "both.md", Status: StatusConflict, InLocal: true, InRemote: true, LocalChanged: true, RemoteChanged: true},
	}

	tests := []struct {
		dir         Direction
		wantPull    int
		wantPush    int
		wantSkipped int
	}{
		{DirectionBoth, 3, 3, 0},
		{DirectionPull, 3, 0, 3},
		{DirectionPush, 0, 3, 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			pull, push, conflicts, skipped := Partition(changes, tt.dir)
			if len(pull) != tt.wantPull {
				t.Errorf("pull = %d, want %d", len(pull), tt.wantPull)
			}
			if len(push) != tt.wantPush {
				t.Errorf("push = %d, want %d", len(push), tt.wantPush)
			}
			if len(conflicts) != 1 {
				t.Errorf("conflicts = %d, want 1", len(conflicts))
			}
			if skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
		})
	}
}

func TestPartitionSkipsUnflaggedModified(t *testing.T) {
	changes := []Change{
		{Path: "drift.md", Status: StatusModified, InLocal: true, InRemote: true},
	}

	pull, push, conflicts, skipped := Partition(changes, DirectionBoth)
	if len(pull) != 0 || len(push) != 0 || len(conflicts) != 0 {
		t.Fatalf("unflagged modified change must not be applied: pull=%d push=%d conflicts=%d",
			len(pull), len(push), len(conflicts))
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}
