package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matildepark/wisp-explorer/internal/atproto"
	"github.com/matildepark/wisp-explorer/internal/identity"
	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/internal/manifest"
	"github.com/matildepark/wisp-explorer/internal/metrics"
)

// Server ties the serving session to the clients that feed it: the
// protocol client for blob fetches, the identity resolver and manifest
// fetcher for the admin API.
type Server struct {
	session  *Session
	client   *atproto.Client
	resolver *identity.Resolver
	fetcher  *manifest.Fetcher
	prefix   string
}

// NewServer assembles a gateway server. prefix is the reserved path
// prefix without slashes.
func NewServer(session *Session, client *atproto.Client, resolver *identity.Resolver, fetcher *manifest.Fetcher, prefix string) *Server {
	return &Server{
		session:  session,
		client:   client,
		resolver: resolver,
		fetcher:  fetcher,
		prefix:   prefix,
	}
}

// Handler returns the complete HTTP surface: scoped site requests via
// the interceptor, the admin API and health endpoint behind it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/site", s.handleLoadSite)
	mux.HandleFunc("DELETE /api/site", s.handleClearSite)
	mux.HandleFunc("DELETE /api/cache", s.handleClearCache)
	mux.HandleFunc("GET /api/sites", s.handleListSites)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/status", http.StatusFound)
	})
	return logging.Middleware(metrics.Middleware(s.Middleware(mux)))
}

func sendError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"durable": s.session.Store().Durable(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.Status(r.Context())
	if err != nil {
		sendError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, st)
}

type loadSiteRequest struct {
	Handle string `json:"handle"`
	Site   string `json:"site"`
}

// handleLoadSite resolves the handle, fetches the named site's manifest
// and installs it as the resident site.
func (s *Server) handleLoadSite(w http.ResponseWriter, r *http.Request) {
	var req loadSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Handle == "" || req.Site == "" {
		sendError(w, http.StatusBadRequest, "handle and site are required")
		return
	}

	m, si, err := s.LoadSite(r.Context(), req.Handle, req.Site)
	if err != nil {
		code := http.StatusBadGateway
		if _, ok := identity.AsResolutionError(err); ok {
			code = http.StatusNotFound
		}
		if errors.Is(err, manifest.ErrNoSite) {
			code = http.StatusNotFound
		}
		sendError(w, code, err.Error())
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"siteInfo":  si,
		"fileCount": m.FileCount,
	})
}

// LoadSite is the full admission path: handle to identity to endpoint,
// manifest fetch, then SET_MANIFEST through the control channel.
func (s *Server) LoadSite(ctx context.Context, handle, site string) (*manifest.Manifest, *manifest.SiteInfo, error) {
	res, err := s.resolver.Resolve(ctx, handle)
	if err != nil {
		metrics.RecordResolution("error")
		return nil, nil, err
	}
	metrics.RecordResolution("ok")

	start := time.Now()
	m, err := s.fetcher.FetchSite(ctx, res.Endpoint, res.DID, site)
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordManifestFetch(time.Since(start), m.FileCount)

	si := &manifest.SiteInfo{
		Endpoint: res.Endpoint,
		DID:      res.DID,
		Handle:   res.Handle,
		SiteName: site,
	}
	if _, err := s.session.SetManifest(ctx, m, si); err != nil {
		return nil, nil, err
	}
	return m, si, nil
}

func (s *Server) handleClearSite(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.ClearManifest(r.Context()); err != nil {
		sendError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.ClearCache(r.Context()); err != nil {
		sendError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// handleListSites enumerates the site records published by a handle.
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("handle")
	if handle == "" {
		sendError(w, http.StatusBadRequest, "handle query parameter is required")
		return
	}

	res, err := s.resolver.Resolve(r.Context(), handle)
	if err != nil {
		metrics.RecordResolution("error")
		logging.Warn("resolution failed", zap.String("input", handle), zap.Error(err))
		sendError(w, http.StatusNotFound, err.Error())
		return
	}
	metrics.RecordResolution("ok")

	sites, err := s.fetcher.ListSites(r.Context(), res.Endpoint, res.DID)
	if err != nil {
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"did":   res.DID,
		"sites": sites,
	})
}
