package rewrite

import (
	"strings"
	"testing"

	"github.com/matildepark/wisp-explorer/pkg/vfs"
)

const base = "/wisp/did:plc:xyz/mysite/"

func TestHTML_SingleBaseDeclaration(t *testing.T) {
	inputs := []string{
		`<html><head><title>t</title></head><body></body></html>`,
		`<html><head><base href="https://other.example/"><title>t</title></head><body></body></html>`,
		`<html><head><base href="/a/"><base href="/b/"></head><body></body></html>`,
	}
	for _, in := range inputs {
		out := HTML(in, base)
		if got := strings.Count(strings.ToLower(out), "<base"); got != 1 {
			t.Errorf("base count = %d, want 1\ninput: %s\noutput: %s", got, in, out)
		}
		if !strings.Contains(out, `<base href="`+base+`">`) {
			t.Errorf("output missing injected base: %s", out)
		}
	}
}

func TestHTML_SynthesizesHeadAndBody(t *testing.T) {
	out := HTML(`<p>bare fragment</p>`, base)
	if !strings.Contains(out, `<head><base href="`+base+`">`) {
		t.Errorf("head not synthesized: %s", out)
	}
	if !strings.Contains(out, "data-wisp-overlay") {
		t.Errorf("overlay not appended: %s", out)
	}

	out = HTML(`<html><body><p>x</p></body></html>`, base)
	if !strings.Contains(out, `<head><base href="`+base+`"></head>`) {
		t.Errorf("head not synthesized after html tag: %s", out)
	}
	// Overlay goes before the body close tag.
	if strings.Index(out, "data-wisp-overlay") > strings.Index(out, "</body>") {
		t.Errorf("overlay placed after </body>: %s", out)
	}
}

func TestRewriteRefs(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<a href="/about.html">x</a>`, `<a href="about.html">x</a>`},
		{`<a href="/">home</a>`, `<a href="">home</a>`},
		{`<a href="http://x.example/a">x</a>`, `<a href="http://x.example/a">x</a>`},
		{`<a href="https://x.example/a">x</a>`, `<a href="https://x.example/a">x</a>`},
		{`<a href="relative/a.html">x</a>`, `<a href="relative/a.html">x</a>`},
		{`<a href="//cdn.example/a.js">x</a>`, `<a href="//cdn.example/a.js">x</a>`},
		{`<script src="/js/app.js"></script>`, `<script src="js/app.js"></script>`},
		{`<link rel="stylesheet" href="/css/site.css">`, `<link rel="stylesheet" href="css/site.css">`},
		{`<img src='/img/a.png'>`, `<img src='img/a.png'>`},
		{`<iframe src="/embed"></iframe>`, `<iframe src="embed"></iframe>`},
		{`<embed src="/movie.swf">`, `<embed src="movie.swf">`},
		// Elements outside the reference set keep their attributes.
		{`<form action="/submit">`, `<form action="/submit">`},
		{`<div href="/x">`, `<div href="/x">`},
	}
	for _, tt := range tests {
		if got := RewriteRefs(tt.in); got != tt.want {
			t.Errorf("RewriteRefs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRewriteRefs_Srcset(t *testing.T) {
	in := `<source srcset="/img/a.png 1x, /img/b.png 2x, https://cdn.example/c.png 3x">`
	want := `<source srcset="img/a.png 1x, img/b.png 2x, https://cdn.example/c.png 3x">`
	if got := RewriteRefs(in); got != want {
		t.Errorf("srcset rewrite = %q, want %q", got, want)
	}

	in = `<img src="/hero.png" srcset="/hero-2x.png 2x">`
	got := RewriteRefs(in)
	if !strings.Contains(got, `src="hero.png"`) || !strings.Contains(got, `srcset="hero-2x.png 2x"`) {
		t.Errorf("combined src/srcset rewrite = %q", got)
	}
}

func TestStripBase(t *testing.T) {
	in := `<head><base href="/old/" target="_blank"><title>t</title></head>`
	out := StripBase(in)
	if strings.Contains(strings.ToLower(out), "<base") {
		t.Errorf("base survived strip: %q", out)
	}
	if !strings.Contains(out, "<title>t</title>") {
		t.Errorf("strip damaged surrounding markup: %q", out)
	}
}

func TestCSS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`body{background:url(/img/bg.png)}`, `body{background:url(img/bg.png)}`},
		{`body{background:url("/img/bg.png")}`, `body{background:url("img/bg.png")}`},
		{`body{background:url('/img/bg.png')}`, `body{background:url('img/bg.png')}`},
		{`body{background:url(img/bg.png)}`, `body{background:url(img/bg.png)}`},
		{`body{background:url(data:image/png;base64,AAAA)}`, `body{background:url(data:image/png;base64,AAAA)}`},
		{`body{background:url(https://cdn.example/bg.png)}`, `body{background:url(https://cdn.example/bg.png)}`},
		{`body{background:url(//cdn.example/bg.png)}`, `body{background:url(//cdn.example/bg.png)}`},
	}
	for _, tt := range tests {
		if got := CSS(tt.in); got != tt.want {
			t.Errorf("CSS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAppendOverlay(t *testing.T) {
	out := AppendOverlay(`<body><p>x</p></body>`, base)
	if got := strings.Count(out, "data-wisp-overlay"); got != 1 {
		t.Errorf("overlay count = %d, want 1", got)
	}
	if !strings.Contains(out, "</script></body>") && !strings.Contains(out, "</script>\n</body>") {
		t.Errorf("overlay not before </body>: %q", out)
	}

	out = AppendOverlay(`<p>no body</p>`, base)
	if !strings.Contains(out, "data-wisp-overlay") {
		t.Errorf("overlay missing when body absent: %q", out)
	}
}

func TestDirectoryListing(t *testing.T) {
	ls := vfs.Listing{
		Files: map[string]vfs.FileEntry{
			"b.txt": {CID: "b"},
			"a.txt": {CID: "a"},
		},
		Dirs: []string{"docs", "img"},
	}

	out := DirectoryListing("blog/2024", ls)
	if !strings.Contains(out, `<a href="blog/">../</a>`) {
		t.Errorf("parent link missing or wrong: %q", out)
	}
	if !strings.Contains(out, `<a href="blog/2024/docs/">docs/</a>`) {
		t.Errorf("subdirectory link wrong: %q", out)
	}
	if !strings.Contains(out, `<a href="blog/2024/a.txt">a.txt</a>`) {
		t.Errorf("file link wrong: %q", out)
	}
	// Files are sorted.
	if strings.Index(out, "a.txt") > strings.Index(out, "b.txt") {
		t.Error("files not sorted")
	}

	root := DirectoryListing("", ls)
	if strings.Contains(root, "../") {
		t.Error("root listing should have no parent link")
	}
	if !strings.Contains(root, `<a href="docs/">docs/</a>`) {
		t.Errorf("root child link wrong: %q", root)
	}
}
