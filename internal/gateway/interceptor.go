package gateway

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/internal/manifest"
	"github.com/matildepark/wisp-explorer/internal/rewrite"
	"github.com/matildepark/wisp-explorer/pkg/vfs"
)

// CacheHeader reports whether a served blob came from the cache.
const CacheHeader = "X-Blob-Cache"

// Middleware intercepts requests under /<prefix>/<identity>/<siteName>/
// and serves them from the resident manifest. Everything else passes
// through to next unmodified.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, site, subpath, ok := s.splitScoped(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		s.serveSite(w, r, identity, site, subpath)
	})
}

// splitScoped matches /<prefix>/<identity>/<siteName>/<subpath...>.
// Paths under the prefix with fewer segments are not scoped requests.
func (s *Server) splitScoped(p string) (identity, site, subpath string, ok bool) {
	rest, found := strings.CutPrefix(p, "/"+s.prefix+"/")
	if !found {
		return "", "", "", false
	}
	identity, rest, found = strings.Cut(rest, "/")
	if !found || identity == "" {
		return "", "", "", false
	}
	site, subpath, _ = strings.Cut(rest, "/")
	if site == "" {
		return "", "", "", false
	}
	return identity, site, subpath, true
}

func (s *Server) serveSite(w http.ResponseWriter, r *http.Request, identity, site, subpath string) {
	m, si := s.session.Resident()
	if m == nil || si == nil {
		sendError(w, http.StatusServiceUnavailable, "no site loaded")
		return
	}
	if identity != si.DID {
		sendError(w, http.StatusBadRequest, "site mismatch: serving "+si.DID)
		return
	}

	subpath = vfs.NormalizePath(subpath)
	basePath := "/" + s.prefix + "/" + si.DID + "/" + si.SiteName + "/"

	node, err := vfs.Lookup(m.Root, subpath)
	if err != nil {
		// Extension fallback: /about may name /about.html.
		if n2, err2 := vfs.Lookup(m.Root, subpath+".html"); err2 == nil && n2.File != nil {
			s.serveFile(w, r, si, basePath, subpath+".html", *n2.File)
			return
		}
		http.NotFound(w, r)
		return
	}

	if node.File != nil {
		s.serveFile(w, r, si, basePath, subpath, *node.File)
		return
	}

	if idx, name, ok := vfs.IndexFile(node.Dir); ok {
		idxPath := name
		if subpath != "" {
			idxPath = subpath + "/" + name
		}
		s.serveFile(w, r, si, basePath, idxPath, idx)
		return
	}

	markup := rewrite.DirectoryListing(subpath, vfs.List(node.Dir))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(rewrite.HTML(markup, basePath)))
}

// serveFile fetches the entry's blob and writes it with post-processing
// appropriate to its content category.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, si *manifest.SiteInfo, basePath, name string, entry vfs.FileEntry) {
	data, hit, err := s.fetchBlob(r.Context(), si.Endpoint, si.DID, entry.CID)
	if err != nil {
		logging.Error("blob retrieval failed",
			zap.String("path", name), zap.String("cid", entry.CID), zap.Error(err))
		sendError(w, http.StatusInternalServerError, "content retrieval failed")
		return
	}

	marker := "MISS"
	if hit {
		marker = "HIT"
	}
	w.Header().Set(CacheHeader, marker)

	ct := vfs.ContentType(name, entry)
	w.Header().Set("Content-Type", ct)

	switch {
	case strings.HasPrefix(ct, "text/html"):
		data = []byte(rewrite.HTML(string(data), basePath))
	case strings.HasPrefix(ct, "text/css"):
		data = []byte(rewrite.CSS(string(data)))
	}
	_, _ = w.Write(data)
}
