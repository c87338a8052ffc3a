package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matildepark/wisp-explorer/internal/atproto"
	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/pkg/vfs"
)

// Default record collections.
const (
	DefaultSiteCollection      = "blue.wisp.site"
	DefaultDirectoryCollection = "blue.wisp.directory"
)

// Fetcher retrieves site and directory-fragment records from a hosting
// endpoint and assembles them into a Manifest.
type Fetcher struct {
	client         *atproto.Client
	siteCollection string
	dirCollection  string
}

// NewFetcher creates a fetcher. Empty collection names fall back to the
// defaults.
func NewFetcher(client *atproto.Client, siteCollection, dirCollection string) *Fetcher {
	if siteCollection == "" {
		siteCollection = DefaultSiteCollection
	}
	if dirCollection == "" {
		dirCollection = DefaultDirectoryCollection
	}
	return &Fetcher{client: client, siteCollection: siteCollection, dirCollection: dirCollection}
}

// siteValue is the wire form of a site record.
type siteValue struct {
	Name      string          `json:"name"`
	FileCount int             `json:"fileCount"`
	CreatedAt string          `json:"createdAt"`
	Root      json.RawMessage `json:"root"`
}

// fragmentValue is the wire form of a directory-fragment record. Site
// names the site rkey the fragment merges into; absent means it applies
// to every site in the repository.
type fragmentValue struct {
	Site string          `json:"site"`
	Root json.RawMessage `json:"root"`
}

// FetchSite fetches the site record rkey from (endpoint, did), converts
// its root, then merges every matching directory fragment into it in
// fetch order. A missing site record returns ErrNoSite.
func (f *Fetcher) FetchSite(ctx context.Context, endpoint, did, rkey string) (*Manifest, error) {
	rec, err := f.client.GetRecord(ctx, endpoint, did, f.siteCollection, rkey)
	if err != nil {
		if errors.Is(err, atproto.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoSite, rkey)
		}
		return nil, err
	}

	var site siteValue
	if err := json.Unmarshal(rec.Value, &site); err != nil {
		return nil, &ParseError{Record: rkey, Msg: "malformed site record: " + err.Error()}
	}
	if site.Name == "" {
		site.Name = rkey
	}

	root, err := DecodeDirectory(site.Root)
	if err != nil {
		return nil, err
	}

	fragments, err := f.client.ListRecords(ctx, endpoint, did, f.dirCollection)
	if err != nil {
		return nil, err
	}
	merged := 0
	for _, frag := range fragments {
		var fv fragmentValue
		if err := json.Unmarshal(frag.Value, &fv); err != nil {
			return nil, &ParseError{Record: frag.RKey(), Msg: "malformed fragment record: " + err.Error()}
		}
		if fv.Site != "" && fv.Site != rkey {
			continue
		}
		sub, err := DecodeDirectory(fv.Root)
		if err != nil {
			return nil, err
		}
		root = vfs.Merge(root, sub)
		merged++
	}

	m := &Manifest{
		Root:      root,
		SiteName:  site.Name,
		FileCount: site.FileCount,
		CreatedAt: parseTime(site.CreatedAt),
	}
	if m.FileCount == 0 {
		m.FileCount = vfs.CountFiles(root)
	}

	logging.Debug("site manifest assembled",
		zap.String("site", site.Name),
		zap.Int("files", m.FileCount),
		zap.Int("fragments", merged))
	return m, nil
}

// ListSites lists every published site record in the repository.
func (f *Fetcher) ListSites(ctx context.Context, endpoint, did string) ([]SiteRef, error) {
	recs, err := f.client.ListRecords(ctx, endpoint, did, f.siteCollection)
	if err != nil {
		return nil, err
	}

	refs := make([]SiteRef, 0, len(recs))
	for _, rec := range recs {
		var site siteValue
		if err := json.Unmarshal(rec.Value, &site); err != nil {
			return nil, &ParseError{Record: rec.RKey(), Msg: "malformed site record: " + err.Error()}
		}
		name := site.Name
		if name == "" {
			name = rec.RKey()
		}
		refs = append(refs, SiteRef{
			RKey:      rec.RKey(),
			Name:      name,
			FileCount: site.FileCount,
			CreatedAt: parseTime(site.CreatedAt),
		})
	}
	return refs, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
