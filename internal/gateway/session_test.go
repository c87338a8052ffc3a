package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matildepark/wisp-explorer/internal/manifest"
	"github.com/matildepark/wisp-explorer/internal/store"
	"github.com/matildepark/wisp-explorer/pkg/vfs"
)

func testManifest() (*manifest.Manifest, *manifest.SiteInfo) {
	m := &manifest.Manifest{
		Root: &vfs.Directory{
			Files: map[string]vfs.FileEntry{
				"index.html": {CID: "bafyindex", MimeType: "text/html"},
			},
		},
		SiteName:  "mysite",
		FileCount: 1,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	si := &manifest.SiteInfo{
		Endpoint: "https://pds.example",
		DID:      "did:plc:xyz",
		Handle:   "alice.example",
		SiteName: "mysite",
	}
	return m, si
}

func runSession(t *testing.T, st *store.Store) *Session {
	t.Helper()
	s := NewSession(st)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s
}

func TestSession_SetStatusClear(t *testing.T) {
	s := runSession(t, store.NewMemory())
	ctx := context.Background()

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.HasManifest {
		t.Error("fresh session reports a manifest")
	}

	m, si := testManifest()
	ok, err := s.SetManifest(ctx, m, si)
	if err != nil || !ok {
		t.Fatalf("SetManifest: ok=%v err=%v", ok, err)
	}

	st, err = s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.HasManifest || st.SiteInfo == nil || st.SiteInfo.SiteName != "mysite" {
		t.Errorf("status = %+v", st)
	}

	if _, err := s.ClearManifest(ctx); err != nil {
		t.Fatalf("ClearManifest: %v", err)
	}
	if rm, _ := s.Resident(); rm != nil {
		t.Error("manifest still resident after clear")
	}
}

func TestSession_SetManifestRejectsNil(t *testing.T) {
	s := runSession(t, store.NewMemory())
	if _, err := s.SetManifest(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil manifest")
	}
}

func TestSession_CancelledCaller(t *testing.T) {
	// No Run loop: the send must fail on the caller's context rather
	// than block.
	s := NewSession(store.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Status(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestSession_RehydratesFromDurableStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wisp.db")

	st := store.Open(path)
	if !st.Durable() {
		t.Fatal("expected durable store")
	}
	s := runSession(t, st)
	m, si := testManifest()
	if _, err := s.SetManifest(context.Background(), m, si); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh process: new store handle, new session, nothing resident.
	st2 := store.Open(path)
	defer st2.Close()
	s2 := NewSession(st2)

	rm, rsi := s2.Resident()
	if rm == nil || rsi == nil {
		t.Fatal("manifest not rehydrated")
	}
	if rsi.DID != "did:plc:xyz" || rm.FileCount != 1 {
		t.Errorf("rehydrated = %+v / %+v", rm, rsi)
	}
	if rm.Root == nil || rm.Root.Files["index.html"].CID != "bafyindex" {
		t.Errorf("rehydrated tree = %+v", rm.Root)
	}
}

func TestSession_RehydrationIsOneShot(t *testing.T) {
	// Memory store, nothing durable: the first Resident call attempts
	// rehydration and later calls stay nil without blocking.
	s := NewSession(store.NewMemory())
	for i := 0; i < 3; i++ {
		if m, _ := s.Resident(); m != nil {
			t.Fatalf("call %d: unexpected manifest", i)
		}
	}
}
