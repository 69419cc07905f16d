package sync

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	gosync "sync"

	"github.com/vaultsyncd/vaultsyncd/internal/gh"
	"github.com/vaultsyncd/vaultsyncd/internal/hashutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeTransport implements gh.Transport against an in-memory repository.
// Blob shas are real git blob addresses so reconciliation against a local
// index behaves exactly as it would against the live API.
type fakeTransport struct {
	mu      gosync.Mutex
	blobs   map[string][]byte            // blob sha -> content
	trees   map[string]map[string]string // tree sha -> path -> blob sha
	commits map[string]*gh.Commit
	head    string

	// rejectUpdates makes the next N UpdateRef calls fail as
	// non-fast-forward before state is touched.
	rejectUpdates int

	// updateErr is returned by the next UpdateRef call when set.
	updateErr error

	// failContents makes GetContents fail for the listed paths.
	failContents map[string]error

	// plainEncoding marks paths whose contents response carries encoding
	// "none" and no inline content, as the API answers for oversized blobs.
	plainEncoding map[string]bool

	calls map[string]int
}

func newFakeTransport(files map[string]string) *fakeTransport {
	f := &fakeTransport{
		blobs:         make(map[string][]byte),
		trees:         make(map[string]map[string]string),
		commits:       make(map[string]*gh.Commit),
		failContents:  make(map[string]error),
		plainEncoding: make(map[string]bool),
		calls:         make(map[string]int),
	}
	tree := make(map[string]string)
	for path, content := range files {
		sha := f.storeBlob([]byte(content))
		tree[path] = sha
	}
	treeSHA := f.storeTree(tree)
	f.head = f.storeCommit("initial", treeSHA, nil)
	return f
}

func (f *fakeTransport) storeBlob(content []byte) string {
	sha := hashutil.BlobSHA(content, true)
	f.blobs[sha] = content
	return sha
}

func (f *fakeTransport) storeTree(tree map[string]string) string {
	paths := make([]string, 0, len(tree))
	for p := range tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	h := sha1.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s=%s\n", p, tree[p])
	}
	sha := hex.EncodeToString(h.Sum(nil))
	f.trees[sha] = tree
	return sha
}

func (f *fakeTransport) storeCommit(message, tree string, parents []string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%v", message, tree, parents)
	sha := hex.EncodeToString(h.Sum(nil))
	f.commits[sha] = &gh.Commit{SHA: sha, Message: message, TreeSHA: tree, Parents: parents}
	return sha
}

func (f *fakeTransport) headTree() map[string]string {
	return f.trees[f.commits[f.head].TreeSHA]
}

// seed replaces a file directly on the head, simulating an out-of-band
// commit by another client.
func (f *fakeTransport) seed(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tree := make(map[string]string, len(f.headTree())+1)
	for p, s := range f.headTree() {
		tree[p] = s
	}
	tree[path] = f.storeBlob([]byte(content))
	f.head = f.storeCommit("external", f.storeTree(tree), []string{f.head})
}

func (f *fakeTransport) remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tree := make(map[string]string, len(f.headTree()))
	for p, s := range f.headTree() {
		if p != path {
			tree[p] = s
		}
	}
	f.head = f.storeCommit("external", f.storeTree(tree), []string{f.head})
}

func (f *fakeTransport) GetTree(_ context.Context, _, _, _ string) ([]gh.TreeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetTree"]++
	var entries []gh.TreeEntry
	for path, sha := range f.headTree() {
		entries = append(entries, gh.TreeEntry{
			Path: path,
			Mode: gh.ModeFile,
			Type: gh.TypeBlob,
			SHA:  sha,
			Size: int64(len(f.blobs[sha])),
		})
	}
	return entries, nil
}

func (f *fakeTransport) GetContents(_ context.Context, _, _, path, _ string) (*gh.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetContents"]++
	if err, ok := f.failContents[path]; ok {
		return nil, err
	}
	sha, ok := f.headTree()[path]
	if !ok {
		return nil, &gh.APIError{Status: 404, Message: "Not Found"}
	}
	content := f.blobs[sha]
	if f.plainEncoding[path] {
		return &gh.Blob{SHA: sha, Size: int64(len(content)), Encoding: "none"}, nil
	}
	return &gh.Blob{
		SHA:      sha,
		Size:     int64(len(content)),
		Content:  hashutil.EncodeBase64(content),
		Encoding: "base64",
	}, nil
}

func (f *fakeTransport) CreateBlob(_ context.Context, _, _, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateBlob"]++
	data, err := hashutil.DecodeBase64(content)
	if err != nil {
		return "", err
	}
	return f.storeBlob(data), nil
}

func (f *fakeTransport) GetRef(_ context.Context, _, _, ref string) (*gh.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetRef"]++
	return &gh.Ref{Name: "refs/" + ref, Object: gh.RefObject{Type: "commit", SHA: f.head}}, nil
}

func (f *fakeTransport) GetCommit(_ context.Context, _, _, sha string) (*gh.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetCommit"]++
	c, ok := f.commits[sha]
	if !ok {
		return nil, &gh.APIError{Status: 404, Message: "Not Found"}
	}
	return c, nil
}

func (f *fakeTransport) CreateTree(_ context.Context, _, _, baseTree string, entries []gh.TreeSpec) (*gh.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateTree"]++
	base, ok := f.trees[baseTree]
	if !ok {
		return nil, &gh.APIError{Status: 404, Message: "Not Found"}
	}
	tree := make(map[string]string, len(base))
	for p, s := range base {
		tree[p] = s
	}
	for _, e := range entries {
		if e.SHA == nil {
			delete(tree, e.Path)
			continue
		}
		tree[e.Path] = *e.SHA
	}
	return &gh.Tree{SHA: f.storeTree(tree)}, nil
}

func (f *fakeTransport) CreateCommit(_ context.Context, _, _, message, tree string, parents []string) (*gh.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateCommit"]++
	sha := f.storeCommit(message, tree, parents)
	return f.commits[sha], nil
}

func (f *fakeTransport) UpdateRef(_ context.Context, _, _, ref, sha string, force bool) (*gh.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateRef"]++
	if f.updateErr != nil {
		err := f.updateErr
		f.updateErr = nil
		return nil, err
	}
	if f.rejectUpdates > 0 {
		f.rejectUpdates--
		return nil, &gh.APIError{Status: 422, Message: "Update is not a fast forward"}
	}
	commit, ok := f.commits[sha]
	if !ok {
		return nil, &gh.APIError{Status: 404, Message: "Not Found"}
	}
	if !force {
		fastForward := false
		for _, p := range commit.Parents {
			if p == f.head {
				fastForward = true
			}
		}
		if !fastForward {
			return nil, &gh.APIError{Status: 422, Message: "Update is not a fast forward"}
		}
	}
	f.head = sha
	return &gh.Ref{Name: "refs/" + ref, Object: gh.RefObject{Type: "commit", SHA: sha}}, nil
}
