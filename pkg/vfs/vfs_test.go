package vfs

import (
	"errors"
	"testing"
)

func sampleTree() *Directory {
	return &Directory{
		Files: map[string]FileEntry{
			"index.html": {CID: "cid-index", MimeType: "text/html"},
			"style.css":  {CID: "cid-css"},
		},
		Dirs: map[string]*Directory{
			"blog": {
				Files: map[string]FileEntry{
					"post.html": {CID: "cid-post"},
					"about":     {CID: "cid-about-noext"},
				},
				Dirs: map[string]*Directory{
					"2024": {Files: map[string]FileEntry{"jan.html": {CID: "cid-jan"}}},
				},
			},
			"empty": {},
		},
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/", ""},
		{"a/b", "a/b"},
		{"/a/b/", "a/b"},
		{"a/./b", "a/b"},
		{"/a/../b/", "b"},
		{"../../a", "a"},
		{"a//b", "a/b"},
		{"  /a/b  ", "a/b"},
		{"a/b?x=1", "a/b"},
		{"a/b#frag", "a/b"},
		{"a/b/../../..", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePath_Idempotent(t *testing.T) {
	inputs := []string{"", "/a/../b/", "a/./b", "x//y/z/", "a/b?q=1#f"}
	for _, in := range inputs {
		once := NormalizePath(in)
		if twice := NormalizePath(once); twice != once {
			t.Errorf("NormalizePath not idempotent on %q: %q then %q", in, once, twice)
		}
	}
}

func TestLookup_File(t *testing.T) {
	root := sampleTree()

	// Leading slash, trailing slash and query/fragment must not matter.
	for _, p := range []string{"blog/post.html", "/blog/post.html", "blog/post.html/", "blog/post.html?v=2", "/blog/post.html#top"} {
		node, err := Lookup(root, p)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", p, err)
		}
		if node.File == nil || node.File.CID != "cid-post" {
			t.Errorf("Lookup(%q) = %+v, want file cid-post", p, node)
		}
	}
}

func TestLookup_Root(t *testing.T) {
	root := sampleTree()
	node, err := Lookup(root, "")
	if err != nil {
		t.Fatalf("Lookup root: %v", err)
	}
	if node.Dir != root {
		t.Error("Lookup(\"\") did not return root directory")
	}

	// Even an empty tree has a root listing.
	empty := &Directory{}
	node, err = Lookup(empty, "")
	if err != nil {
		t.Fatalf("Lookup empty root: %v", err)
	}
	if node.Dir == nil {
		t.Error("empty tree root lookup returned no directory")
	}
	ls := List(node.Dir)
	if len(ls.Files) != 0 || len(ls.Dirs) != 0 {
		t.Errorf("empty tree listing not empty: %+v", ls)
	}
}

func TestLookup_NotFound(t *testing.T) {
	root := sampleTree()
	for _, p := range []string{"missing", "blog/missing.html", "missing/deep/path", "style.css/child"} {
		if _, err := Lookup(root, p); !errors.Is(err, ErrNotFound) {
			t.Errorf("Lookup(%q) err = %v, want ErrNotFound", p, err)
		}
	}
	if _, err := Lookup(nil, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(nil) err = %v, want ErrNotFound", err)
	}
}

func TestLookup_Directory(t *testing.T) {
	root := sampleTree()
	node, err := Lookup(root, "/blog/")
	if err != nil {
		t.Fatalf("Lookup blog: %v", err)
	}
	if node.Dir == nil {
		t.Fatal("expected directory node")
	}
	ls := List(node.Dir)
	if len(ls.Dirs) != 1 || ls.Dirs[0] != "2024" {
		t.Errorf("listing dirs = %v, want [2024]", ls.Dirs)
	}
	if _, ok := ls.Files["post.html"]; !ok {
		t.Error("listing missing post.html")
	}
}

func TestIndexFile(t *testing.T) {
	dir := &Directory{Files: map[string]FileEntry{
		"index.htm":  {CID: "cid-htm"},
		"index.html": {CID: "cid-html"},
	}}
	f, name, ok := IndexFile(dir)
	if !ok || name != "index.html" || f.CID != "cid-html" {
		t.Errorf("IndexFile = %q/%q/%v, want index.html first", f.CID, name, ok)
	}

	htmOnly := &Directory{Files: map[string]FileEntry{"index.htm": {CID: "cid-htm"}}}
	if _, name, ok := IndexFile(htmOnly); !ok || name != "index.htm" {
		t.Errorf("IndexFile htm fallback failed: %q/%v", name, ok)
	}

	if _, _, ok := IndexFile(&Directory{}); ok {
		t.Error("IndexFile on empty dir should not find anything")
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name  string
		entry FileEntry
		want  string
	}{
		{"a.bin", FileEntry{MimeType: "text/html"}, "text/html"},
		{"page.html", FileEntry{}, "text/html; charset=utf-8"},
		{"noext", FileEntry{}, "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.name, tt.entry); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCountFiles(t *testing.T) {
	if got := CountFiles(sampleTree()); got != 5 {
		t.Errorf("CountFiles = %d, want 5", got)
	}
	if got := CountFiles(nil); got != 0 {
		t.Errorf("CountFiles(nil) = %d, want 0", got)
	}
}
