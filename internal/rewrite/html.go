// Package rewrite contains the pure content transformations applied to
// fetched site content before serving: base-path injection, rewriting
// of absolute-rooted references so they resolve under the reserved
// serving prefix, the navigation overlay, and directory-listing
// synthesis. No function here touches the network or any live document.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

// Package-level compiled patterns; all matching is case-insensitive.
var (
	baseTagRe = regexp.MustCompile(`(?i)<base\b[^>]*>`)
	headTagRe = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	htmlTagRe = regexp.MustCompile(`(?i)<html(?:\s[^>]*)?>`)
	bodyEndRe = regexp.MustCompile(`(?i)</body>`)
	refTagRe  = regexp.MustCompile(`(?i)<(?:a|link|script|img|source|iframe|embed)\b[^>]*>`)
	refAttrRe = regexp.MustCompile(`(?i)\b(href|src)\s*=\s*(["'])(/[^"']*)(["'])`)
	srcsetRe  = regexp.MustCompile(`(?i)\bsrcset\s*=\s*(["'])([^"']*)(["'])`)
	cssURLRe  = regexp.MustCompile(`(?i)url\(\s*(["']?)(/[^"')]*)(["']?)\s*\)`)
)

// HTML runs the full post-processing pipeline over a fetched HTML
// document: any pre-existing base declaration is removed, root-absolute
// references are made base-relative, a single base declaration pointing
// at basePath is injected, and the navigation overlay is appended.
// basePath must be the site's reserved-prefix root, slash-terminated.
func HTML(markup, basePath string) string {
	out := StripBase(markup)
	out = RewriteRefs(out)
	out = InjectBase(out, basePath)
	out = AppendOverlay(out, basePath)
	return out
}

// StripBase removes every base-path declaration from the markup.
func StripBase(markup string) string {
	return baseTagRe.ReplaceAllString(markup, "")
}

// RewriteRefs drops the leading slash from root-absolute href/src and
// srcset values on reference-carrying elements, so they resolve against
// the injected base. Protocol-relative (//host) and non-rooted URLs are
// left alone.
func RewriteRefs(markup string) string {
	return refTagRe.ReplaceAllStringFunc(markup, func(tag string) string {
		tag = refAttrRe.ReplaceAllStringFunc(tag, func(attr string) string {
			m := refAttrRe.FindStringSubmatch(attr)
			if m == nil || m[2] != m[4] {
				return attr
			}
			return m[1] + "=" + m[2] + relativize(m[3]) + m[4]
		})
		return srcsetRe.ReplaceAllStringFunc(tag, func(attr string) string {
			m := srcsetRe.FindStringSubmatch(attr)
			if m == nil || m[1] != m[3] {
				return attr
			}
			return "srcset=" + m[1] + rewriteSrcset(m[2]) + m[3]
		})
	})
}

// relativize turns a root-absolute URL into a base-relative one.
// "//host/x" stays untouched: that is protocol-relative, not rooted.
func relativize(u string) string {
	if strings.HasPrefix(u, "//") {
		return u
	}
	return strings.TrimPrefix(u, "/")
}

// rewriteSrcset rewrites each candidate URL in a srcset value.
func rewriteSrcset(value string) string {
	parts := strings.Split(value, ",")
	for i, part := range parts {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "/") {
			fields[0] = relativize(fields[0])
		}
		parts[i] = strings.Join(fields, " ")
	}
	return strings.Join(parts, ", ")
}

// InjectBase inserts a base-path declaration immediately after the head
// element, synthesizing head and html wrappers when the document lacks
// them.
func InjectBase(markup, basePath string) string {
	base := fmt.Sprintf(`<base href="%s">`, basePath)

	if loc := headTagRe.FindStringIndex(markup); loc != nil {
		return markup[:loc[1]] + base + markup[loc[1]:]
	}
	if loc := htmlTagRe.FindStringIndex(markup); loc != nil {
		return markup[:loc[1]] + "<head>" + base + "</head>" + markup[loc[1]:]
	}
	return "<head>" + base + "</head>" + markup
}

// AppendOverlay appends the navigation-overlay script before the
// closing body element, or at the end when the document has none.
func AppendOverlay(markup, basePath string) string {
	script := overlayScript(basePath)
	if loc := bodyEndRe.FindStringIndex(markup); loc != nil {
		return markup[:loc[0]] + script + markup[loc[0]:]
	}
	return markup + script
}

// CSS rewrites root-absolute url() references in a stylesheet. Data
// URLs and relative URLs never start with a slash, so they pass through
// untouched.
func CSS(stylesheet string) string {
	return cssURLRe.ReplaceAllStringFunc(stylesheet, func(ref string) string {
		m := cssURLRe.FindStringSubmatch(ref)
		if m == nil || m[1] != m[3] {
			return ref
		}
		return "url(" + m[1] + relativize(m[2]) + m[3] + ")"
	})
}
