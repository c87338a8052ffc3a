// Package identity resolves a handle or DID to a canonical identity
// and its hosting endpoint (the account's PDS).
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matildepark/wisp-explorer/internal/atproto"
	"github.com/matildepark/wisp-explorer/pkg/ttlcache"
)

// Reason classifies why a resolution failed.
type Reason string

const (
	// ReasonNotFound: the identity does not exist.
	ReasonNotFound Reason = "not_found"
	// ReasonNetwork: transport failure after exhausting retries.
	ReasonNetwork Reason = "network"
	// ReasonNoEndpoint: the identity exists but declares no PDS.
	ReasonNoEndpoint Reason = "no_pds"
	// ReasonMismatch: the authoritative document's subject does not
	// match the input.
	ReasonMismatch Reason = "mismatch"
)

// ResolutionError is a failed identity or endpoint resolution.
type ResolutionError struct {
	Input  string
	Reason Reason
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve %q: %s", e.Input, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// AsResolutionError checks if an error is a ResolutionError.
func AsResolutionError(err error) (*ResolutionError, bool) {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Result is a successful resolution.
type Result struct {
	Handle   string `json:"handle,omitempty"`
	DID      string `json:"did"`
	Endpoint string `json:"endpoint"`
}

// cacheTTL is how long resolution results stay valid.
const cacheTTL = time.Hour

// Resolver resolves handles and DIDs, caching successes per raw input.
type Resolver struct {
	client       *atproto.Client
	resolverHost string
	plcDirectory string
	cache        *ttlcache.Cache[Result]
}

// NewResolver creates a resolver backed by client. resolverHost serves
// the handle-resolution endpoint; plcDirectory serves did:plc documents.
func NewResolver(client *atproto.Client, resolverHost, plcDirectory string) *Resolver {
	return &Resolver{
		client:       client,
		resolverHost: resolverHost,
		plcDirectory: plcDirectory,
		cache:        ttlcache.New[Result](cacheTTL),
	}
}

// Resolve turns a handle or DID into {handle, did, endpoint}.
func (r *Resolver) Resolve(ctx context.Context, input string) (Result, error) {
	input = strings.TrimSpace(strings.TrimPrefix(input, "@"))
	if input == "" {
		return Result{}, &ResolutionError{Input: input, Reason: ReasonNotFound, Err: errors.New("empty identity")}
	}

	if cached, ok := r.cache.Get(input); ok {
		return cached, nil
	}

	var res Result
	var err error
	if strings.HasPrefix(input, "did:") {
		res, err = r.resolveDID(ctx, input)
	} else {
		res, err = r.resolveHandle(ctx, input)
	}
	if err != nil {
		return Result{}, err
	}

	r.cache.Set(input, res)
	return res, nil
}

// ClearCache drops all cached resolutions.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

func (r *Resolver) resolveHandle(ctx context.Context, handle string) (Result, error) {
	did, err := r.client.ResolveHandle(ctx, r.resolverHost, handle)
	if err != nil {
		// The input may have been a raw identity domain rather than a
		// registered handle; fall back to its well-known declaration.
		did, err = r.wellKnownDID(ctx, handle)
		if err != nil {
			return Result{}, classify(handle, err)
		}
	}

	res, err := r.resolveDID(ctx, did)
	if err != nil {
		return Result{}, err
	}
	if res.Handle == "" {
		res.Handle = handle
	}
	return res, nil
}

// wellKnownDID reads the domain's atproto DID declaration.
func (r *Resolver) wellKnownDID(ctx context.Context, domain string) (string, error) {
	doc, err := r.fetchDocument(ctx, "https://"+domain+"/.well-known/did.json")
	if err != nil {
		return "", err
	}
	if doc.ID == "" {
		return "", &ResolutionError{Input: domain, Reason: ReasonNotFound, Err: errors.New("well-known document has no id")}
	}
	return doc.ID, nil
}

func (r *Resolver) resolveDID(ctx context.Context, did string) (Result, error) {
	var doc didDocument
	var err error

	switch {
	case strings.HasPrefix(did, "did:plc:"):
		doc, err = r.fetchDocument(ctx, strings.TrimRight(r.plcDirectory, "/")+"/"+did)
	case strings.HasPrefix(did, "did:web:"):
		domain := strings.TrimPrefix(did, "did:web:")
		doc, err = r.fetchDocument(ctx, "https://"+domain+"/.well-known/did.json")
	default:
		return Result{}, &ResolutionError{Input: did, Reason: ReasonNotFound, Err: fmt.Errorf("unsupported identity form %q", did)}
	}
	if err != nil {
		return Result{}, classify(did, err)
	}

	if doc.ID != did {
		return Result{}, &ResolutionError{Input: did, Reason: ReasonMismatch,
			Err: fmt.Errorf("document subject %q does not match input", doc.ID)}
	}

	endpoint := doc.pdsEndpoint()
	if endpoint == "" {
		return Result{}, &ResolutionError{Input: did, Reason: ReasonNoEndpoint, Err: errors.New("no personal data server in service list")}
	}

	return Result{Handle: doc.handle(), DID: did, Endpoint: endpoint}, nil
}

// didDocument is the subset of a DID document we read.
type didDocument struct {
	ID          string   `json:"id"`
	AlsoKnownAs []string `json:"alsoKnownAs"`
	Service     []struct {
		ID              string `json:"id"`
		Type            string `json:"type"`
		ServiceEndpoint string `json:"serviceEndpoint"`
	} `json:"service"`
}

func (r *Resolver) fetchDocument(ctx context.Context, u string) (didDocument, error) {
	var doc didDocument
	err := r.client.GetJSON(ctx, u, &doc)
	return doc, err
}

// pdsEndpoint scans the service list for the reserved PDS service id or
// the personal-data-server type marker.
func (d didDocument) pdsEndpoint() string {
	for _, svc := range d.Service {
		if strings.HasSuffix(svc.ID, "#atproto_pds") || svc.Type == "AtprotoPersonalDataServer" {
			return strings.TrimRight(svc.ServiceEndpoint, "/")
		}
	}
	return ""
}

// handle returns the display handle declared in alsoKnownAs, if any.
func (d didDocument) handle() string {
	for _, aka := range d.AlsoKnownAs {
		if h, ok := strings.CutPrefix(aka, "at://"); ok {
			return h
		}
	}
	return ""
}

// classify maps a fetch failure to a ResolutionError reason: a definite
// negative answer means not-found, everything else was a network-level
// failure that survived retries.
func classify(input string, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	if fe, ok := atproto.AsFetchError(err); ok && fe.Status >= 400 && fe.Status < 500 {
		return &ResolutionError{Input: input, Reason: ReasonNotFound, Err: err}
	}
	return &ResolutionError{Input: input, Reason: ReasonNetwork, Err: err}
}
