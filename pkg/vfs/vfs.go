// Package vfs implements the in-memory virtual filesystem backing a
// published site: a directory tree of content-addressed file entries,
// plus the path normalization, lookup and merge algorithms.
package vfs

import (
	"errors"
	"mime"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned when a path does not exist in the tree.
var ErrNotFound = errors.New("path not found")

// FileEntry is a single file in the tree. CID is the content-addressed
// reference used to fetch the blob's bytes from the hosting endpoint.
type FileEntry struct {
	CID      string `json:"cid"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Directory is one node of the site tree. Either map may be nil for an
// empty directory. Names are unique within a node; the structure is a
// tree, never a graph.
type Directory struct {
	Files map[string]FileEntry  `json:"files,omitempty"`
	Dirs  map[string]*Directory `json:"dirs,omitempty"`
}

// Node is the result of a lookup: exactly one of File or Dir is set.
type Node struct {
	File *FileEntry
	Dir  *Directory
}

// Listing is a directory view: the files map plus sorted subdirectory
// names, suitable for rendering a directory index.
type Listing struct {
	Files map[string]FileEntry
	Dirs  []string
}

// NormalizePath canonicalizes a request path: query and fragment are
// cut, empty and "." segments dropped, ".." pops the previous segment
// (a no-op at the root). Idempotent.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	var out []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

// Lookup resolves a normalized path against the tree. The empty path
// names the root directory. Files win over directories on the final
// segment.
func Lookup(root *Directory, p string) (Node, error) {
	p = NormalizePath(p)
	if root == nil {
		return Node{}, ErrNotFound
	}
	if p == "" {
		return Node{Dir: root}, nil
	}

	segs := strings.Split(p, "/")
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.Dirs[seg]
		if !ok || next == nil {
			return Node{}, ErrNotFound
		}
		cur = next
	}

	last := segs[len(segs)-1]
	if f, ok := cur.Files[last]; ok {
		entry := f
		return Node{File: &entry}, nil
	}
	if d, ok := cur.Dirs[last]; ok && d != nil {
		return Node{Dir: d}, nil
	}
	return Node{}, ErrNotFound
}

// IndexFile returns the directory's index file, trying index.html then
// index.htm. The second return is false when neither exists.
func IndexFile(dir *Directory) (FileEntry, string, bool) {
	for _, name := range []string{"index.html", "index.htm"} {
		if f, ok := dir.Files[name]; ok {
			return f, name, true
		}
	}
	return FileEntry{}, "", false
}

// List returns a stable directory listing with sorted subdirectories.
func List(dir *Directory) Listing {
	names := make([]string, 0, len(dir.Dirs))
	for name := range dir.Dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return Listing{Files: dir.Files, Dirs: names}
}

// ContentType returns the MIME type to serve a file entry as: the
// manifest-declared type when present, else one inferred from the file
// name's extension, else application/octet-stream.
func ContentType(name string, e FileEntry) string {
	if e.MimeType != "" {
		return e.MimeType
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// CountFiles counts every file reachable from the node.
func CountFiles(root *Directory) int {
	if root == nil {
		return 0
	}
	n := len(root.Files)
	for _, d := range root.Dirs {
		n += CountFiles(d)
	}
	return n
}
