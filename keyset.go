package ap2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"

	"github.com/agentpay/ap2/jws"
)

// KeySet is the published form of a party's public keys. The first key is
// treated as the party's active signing key.
type KeySet struct {
	Keys []jws.PublicKey `json:"keys"`
}

// Active returns the current signing key, if any.
func (s KeySet) Active() (jws.PublicKey, bool) {
	if len(s.Keys) == 0 {
		return jws.PublicKey{}, false
	}
	return s.Keys[0], true
}

// PlatformKeys fetches and caches the platform's published keyset. A fetched
// keyset is cached for the process lifetime; at most one fetch per URL is in
// flight at a time, and failed fetches are not cached so the next caller
// retries. Fetch failure yields an empty keyset rather than an error —
// callers treat "no keys available" as a verification failure.
type PlatformKeys struct {
	url    string
	client *http.Client
	cache  gcache.Cache
}

// PlatformKeysOption customizes fetch behavior.
type PlatformKeysOption func(*PlatformKeys)

// WithHTTPClient overrides the client used for keyset fetches.
func WithHTTPClient(client *http.Client) PlatformKeysOption {
	return func(p *PlatformKeys) {
		p.client = client
	}
}

// NewPlatformKeys builds a trust store reading the JWKS document at url.
func NewPlatformKeys(url string, opts ...PlatformKeysOption) *PlatformKeys {
	p := &PlatformKeys{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(p)
	}
	p.cache = gcache.New(4).
		LRU().
		LoaderFunc(func(key any) (any, error) {
			return p.fetch(key.(string))
		}).
		Build()
	return p
}

// Fetch returns the platform keyset, loading it on first use. The loader runs
// under the cache's per-key flight group, so concurrent first callers share a
// single outstanding request.
func (p *PlatformKeys) Fetch(ctx context.Context) KeySet {
	if err := ctx.Err(); err != nil {
		return KeySet{}
	}
	v, err := p.cache.Get(p.url)
	if err != nil {
		return KeySet{}
	}
	return v.(KeySet)
}

// fetch retrieves the keyset with a bounded retry. Each attempt is
// time-limited by the HTTP client; an exhausted retry budget surfaces as an
// error to the cache, which leaves the entry unpopulated.
func (p *PlatformKeys) fetch(url string) (KeySet, error) {
	var set KeySet
	op := func() error {
		resp, err := p.client.Get(url)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("keyset endpoint returned %s", resp.Status)
		}
		set = KeySet{}
		return json.NewDecoder(resp.Body).Decode(&set)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, 2)); err != nil {
		return KeySet{}, fmt.Errorf("ap2: fetch platform keys: %w", err)
	}
	return set, nil
}
