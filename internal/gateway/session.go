// Package gateway implements the request-interception engine: the
// resident serving session, the control channel driving it, the scoped
// request handler with its blob fetch-or-cache pipeline, and the admin
// API.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/internal/manifest"
	"github.com/matildepark/wisp-explorer/internal/metrics"
	"github.com/matildepark/wisp-explorer/internal/store"
)

// ControlTimeout is how long control-channel callers wait for a reply.
const ControlTimeout = 5 * time.Second

// ErrControlTimeout is returned when the session does not reply within
// the caller's window.
var ErrControlTimeout = errors.New("control channel timeout")

// Status is the session's externally visible state.
type Status struct {
	HasManifest bool               `json:"hasManifest"`
	SiteInfo    *manifest.SiteInfo `json:"siteInfo,omitempty"`
}

type controlKind int

const (
	ctrlSetManifest controlKind = iota
	ctrlClearManifest
	ctrlClearCache
	ctrlGetStatus
)

type controlReply struct {
	ok     bool
	status Status
	err    error
}

type controlRequest struct {
	kind     controlKind
	manifest *manifest.Manifest
	siteInfo *manifest.SiteInfo
	// Dedicated per-request reply channel; replies never cross-talk.
	reply chan controlReply
}

// Session owns the resident manifest and site info. State changes flow
// through the control channel and are processed in receipt order;
// concurrent scoped requests read the resident state directly.
type Session struct {
	store *store.Store
	ctrl  chan controlRequest

	mu       sync.RWMutex
	manifest *manifest.Manifest
	siteInfo *manifest.SiteInfo

	rehydrate sync.Once
}

// NewSession creates a session backed by st.
func NewSession(st *store.Store) *Session {
	return &Session{
		store: st,
		ctrl:  make(chan controlRequest),
	}
}

// Run processes control messages until ctx is cancelled. It must be
// running for the Set/Clear/Status methods to complete.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.ctrl:
			req.reply <- s.handle(req)
		}
	}
}

func (s *Session) handle(req controlRequest) controlReply {
	switch req.kind {
	case ctrlSetManifest:
		if req.manifest == nil || req.siteInfo == nil {
			return controlReply{err: errors.New("set manifest: nil manifest or site info")}
		}
		if err := s.store.SaveSite(req.manifest, req.siteInfo); err != nil {
			// Durable write failure degrades to memory-only residency.
			logging.Warn("manifest not persisted", zap.Error(err))
		}
		s.mu.Lock()
		s.manifest = req.manifest
		s.siteInfo = req.siteInfo
		s.mu.Unlock()
		logging.Info("manifest loaded",
			zap.String("site", req.siteInfo.SiteName),
			zap.String("did", req.siteInfo.DID),
			zap.Int("files", req.manifest.FileCount))
		return controlReply{ok: true}

	case ctrlClearManifest:
		if err := s.store.ClearSite(); err != nil {
			logging.Warn("durable site entry not cleared", zap.Error(err))
		}
		s.mu.Lock()
		s.manifest = nil
		s.siteInfo = nil
		s.mu.Unlock()
		metrics.ClearManifest()
		logging.Info("manifest cleared")
		return controlReply{ok: true}

	case ctrlClearCache:
		if err := s.store.ClearBlobs(); err != nil {
			logging.Error("blob cache not cleared", zap.Error(err))
			return controlReply{err: err}
		}
		logging.Info("blob cache cleared")
		return controlReply{ok: true}

	case ctrlGetStatus:
		s.mu.RLock()
		st := Status{HasManifest: s.manifest != nil, SiteInfo: s.siteInfo}
		s.mu.RUnlock()
		return controlReply{ok: true, status: st}
	}
	return controlReply{err: errors.New("unknown control message")}
}

// send issues one control request with the default timeout. No reply in
// time is reported as failure.
func (s *Session) send(ctx context.Context, req controlRequest) (controlReply, error) {
	req.reply = make(chan controlReply, 1)
	timer := time.NewTimer(ControlTimeout)
	defer timer.Stop()

	select {
	case s.ctrl <- req:
	case <-timer.C:
		return controlReply{}, ErrControlTimeout
	case <-ctx.Done():
		return controlReply{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep, rep.err
	case <-timer.C:
		return controlReply{}, ErrControlTimeout
	case <-ctx.Done():
		return controlReply{}, ctx.Err()
	}
}

// SetManifest installs a new resident manifest and persists it.
func (s *Session) SetManifest(ctx context.Context, m *manifest.Manifest, si *manifest.SiteInfo) (bool, error) {
	rep, err := s.send(ctx, controlRequest{kind: ctrlSetManifest, manifest: m, siteInfo: si})
	return rep.ok, err
}

// ClearManifest removes the resident and durable manifest entries.
func (s *Session) ClearManifest(ctx context.Context) (bool, error) {
	rep, err := s.send(ctx, controlRequest{kind: ctrlClearManifest})
	return rep.ok, err
}

// ClearCache empties only the blob cache.
func (s *Session) ClearCache(ctx context.Context) (bool, error) {
	rep, err := s.send(ctx, controlRequest{kind: ctrlClearCache})
	return rep.ok, err
}

// Status reports whether a manifest resides and for which site.
func (s *Session) Status(ctx context.Context) (Status, error) {
	rep, err := s.send(ctx, controlRequest{kind: ctrlGetStatus})
	return rep.status, err
}

// Resident returns the in-memory manifest and site info, attempting a
// one-time rehydration from the durable store on first miss after a
// cold start.
func (s *Session) Resident() (*manifest.Manifest, *manifest.SiteInfo) {
	s.mu.RLock()
	m, si := s.manifest, s.siteInfo
	s.mu.RUnlock()
	if m != nil {
		return m, si
	}

	s.rehydrate.Do(func() {
		dm, dsi, err := s.store.LoadSite()
		if err != nil {
			logging.Warn("manifest rehydration failed", zap.Error(err))
			return
		}
		if dm == nil || dsi == nil {
			return
		}
		s.mu.Lock()
		// A SET_MANIFEST racing ahead of rehydration wins.
		if s.manifest == nil {
			s.manifest = dm
			s.siteInfo = dsi
		}
		s.mu.Unlock()
		logging.Info("manifest rehydrated from durable store",
			zap.String("site", dsi.SiteName), zap.String("did", dsi.DID))
	})

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest, s.siteInfo
}

// Store exposes the backing store for the blob fetch path.
func (s *Session) Store() *store.Store {
	return s.store
}
