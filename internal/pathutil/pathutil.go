// Package pathutil provides path normalization, remote/local path mapping
// and binary-vs-text classification for vault files.
//
// All functions operate on vault-relative paths using forward slashes,
// regardless of the host platform. Backslashes are treated as separators.
package pathutil

import (
	"path"
	"strings"
)

// binaryExtensions is the fixed set of file extensions treated as binary
// content. Everything else is read and written as text.
var binaryExtensions = map[string]bool{
	// images
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".webp": true, ".ico": true, ".tiff": true, ".svg": false,
	// audio
	".mp3": true, ".wav": true, ".ogg": true, ".flac": true, ".m4a": true,
	// video
	".mp4": true, ".webm": true, ".mov": true, ".avi": true, ".mkv": true,
	// documents and archives
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".7z": true, ".rar": true,
	// fonts and executables
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".wasm": true,
}

// Normalize converts p to a clean vault-relative path: backslashes become
// forward slashes, duplicate separators collapse, and leading/trailing
// separators are stripped.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.Trim(p, "/")
}

// Join joins path elements with forward slashes and normalizes the result.
func Join(elems ...string) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		if n := Normalize(e); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "/")
}

// IsBinary reports whether the path's extension belongs to the fixed set of
// known binary formats.
func IsBinary(p string) bool {
	ext := strings.ToLower(path.Ext(Normalize(p)))
	return binaryExtensions[ext]
}

// ToRemote maps a vault-relative path to its remote repository path given
// the configured subfolder prefix. An empty or root subfolder is an identity
// mapping.
func ToRemote(local, subfolder string) string {
	local = Normalize(local)
	subfolder = Normalize(subfolder)
	if subfolder == "" {
		return local
	}
	return subfolder + "/" + local
}

// ToLocal maps a remote repository path back to a vault-relative path,
// stripping the subfolder prefix. The second return value is false when the
// remote path lies outside the configured subfolder.
func ToLocal(remote, subfolder string) (string, bool) {
	remote = Normalize(remote)
	subfolder = Normalize(subfolder)
	if subfolder == "" {
		return remote, true
	}
	prefix := subfolder + "/"
	if !strings.HasPrefix(remote, prefix) {
		return "", false
	}
	return remote[len(prefix):], true
}
