package rewrite

import (
	"fmt"
	"html"
	"path"
	"sort"
	"strings"

	"github.com/matildepark/wisp-explorer/pkg/vfs"
)

// DirectoryListing synthesizes a minimal index page for a directory
// with no index file: parent link, sorted subdirectories, sorted files.
// dirPath is the normalized site-relative directory ("" for the root).
// Links are written relative to the site root so they resolve against
// the base declaration injected by the regular HTML post-processing.
func DirectoryListing(dirPath string, ls vfs.Listing) string {
	dirPath = strings.Trim(dirPath, "/")

	var b strings.Builder
	title := "/" + dirPath
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, "<title>Index of %s</title>", html.EscapeString(title))
	b.WriteString("</head><body>")
	fmt.Fprintf(&b, "<h1>Index of %s</h1><ul>", html.EscapeString(title))

	if dirPath != "" {
		parent := path.Dir(dirPath)
		href := "."
		if parent != "." {
			href = parent + "/"
		}
		fmt.Fprintf(&b, `<li><a href="%s">../</a></li>`, html.EscapeString(href))
	}

	child := func(name string) string {
		if dirPath == "" {
			return name
		}
		return dirPath + "/" + name
	}

	for _, name := range ls.Dirs {
		fmt.Fprintf(&b, `<li><a href="%s/">%s/</a></li>`,
			html.EscapeString(child(name)), html.EscapeString(name))
	}

	files := make([]string, 0, len(ls.Files))
	for name := range ls.Files {
		files = append(files, name)
	}
	sort.Strings(files)
	for _, name := range files {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`,
			html.EscapeString(child(name)), html.EscapeString(name))
	}

	b.WriteString("</ul></body></html>")
	return b.String()
}
