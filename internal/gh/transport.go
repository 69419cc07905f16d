// Package gh provides the remote transport used by the sync engine: the
// subset of the GitHub REST and Git Data APIs needed to list trees, fetch
// file content and write atomic multi-file commits.
package gh

import "context"

// Object types appearing in tree listings.
const (
	TypeBlob = "blob"
	TypeTree = "tree"
)

// File modes used when writing tree entries.
const (
	ModeFile = "100644"
)

// TreeEntry is one entry of a recursive tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size,omitempty"`
}

// Tree is a git tree object.
type Tree struct {
	SHA       string      `json:"sha"`
	Entries   []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// TreeSpec describes one entry when creating a tree. A nil SHA marks the
// path for deletion from the base tree.
type TreeSpec struct {
	Path string  `json:"path"`
	Mode string  `json:"mode"`
	Type string  `json:"type"`
	SHA  *string `json:"sha"`
}

// Blob is file content fetched through the contents API. Content is base64
// encoded with embedded newlines.
type Blob struct {
	SHA     string `json:"sha"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
	// Encoding is "base64" for blob responses.
	Encoding string `json:"encoding"`
}

// Ref is a git reference and the object it points at.
type Ref struct {
	Name   string    `json:"ref"`
	Object RefObject `json:"object"`
}

// RefObject is the target of a reference.
type RefObject struct {
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// Commit is a git commit object. TreeSHA is the root tree id.
type Commit struct {
	SHA     string   `json:"sha"`
	Message string   `json:"message"`
	TreeSHA string   `json:"-"`
	Parents []string `json:"-"`
}

// Transport is the remote store interface consumed by the sync engine.
// Implementations must be safe for use from a single sync invocation;
// cross-invocation serialization is the caller's responsibility.
type Transport interface {
	// GetTree returns the recursive tree listing for a ref (branch name or
	// commit/tree sha). Implementations must surface truncated listings as
	// an error rather than returning a partial tree.
	GetTree(ctx context.Context, owner, repo, ref string) ([]TreeEntry, error)

	// GetContents fetches one file's blob content at the given ref.
	GetContents(ctx context.Context, owner, repo, path, ref string) (*Blob, error)

	// CreateBlob uploads base64-encoded content and returns its blob sha.
	CreateBlob(ctx context.Context, owner, repo, content string) (string, error)

	// GetRef resolves a reference such as "heads/main".
	GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error)

	// GetCommit fetches a commit object by sha.
	GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error)

	// CreateTree creates a tree layered on baseTree with the given entries.
	CreateTree(ctx context.Context, owner, repo, baseTree string, entries []TreeSpec) (*Tree, error)

	// CreateCommit creates a commit pointing at tree with the given parents.
	CreateCommit(ctx context.Context, owner, repo, message, tree string, parents []string) (*Commit, error)

	// UpdateRef moves a reference to sha. With force false the update must
	// fail unless it is a fast forward.
	UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) (*Ref, error)
}
