// Package resolver validates and normalizes payout addresses.
//
// Two input forms are accepted: a canonical chain address, checked against
// the active chain adapter's format rules, and a federation-style alias of
// the form "name*domain", resolved through one HTTPS lookup against the
// domain's federation endpoint. Alias resolution fails closed: any lookup
// problem is an error, never a guess.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/chain"
	"github.com/Klingon-tech/klingnet-escrow/internal/log"
	"github.com/rs/zerolog"
)

// ErrUnresolvableAlias is returned when a "name*domain" alias cannot be
// resolved to a canonical address.
var ErrUnresolvableAlias = errors.New("unresolvable alias")

// ErrInvalidAddress is returned when input is neither a canonical address
// nor an alias.
var ErrInvalidAddress = errors.New("invalid address")

// maxResponseSize bounds federation response bodies (64 KB).
const maxResponseSize = 64 << 10

// federationRecord is the JSON shape returned by a federation endpoint.
type federationRecord struct {
	Address string `json:"address"`
}

// Resolver resolves user-supplied address input into canonical form.
type Resolver struct {
	adapter  chain.Adapter
	http     *http.Client
	endpoint func(domain string) string
	logger   zerolog.Logger
}

// New creates a resolver validating against the given chain adapter.
func New(adapter chain.Adapter) *Resolver {
	return &Resolver{
		adapter: adapter,
		http:    &http.Client{Timeout: 10 * time.Second},
		endpoint: func(domain string) string {
			return "https://" + domain + "/.well-known/federation"
		},
		logger: log.Resolver,
	}
}

// SetHTTPClient replaces the HTTP client used for alias lookups.
func (r *Resolver) SetHTTPClient(c *http.Client) {
	r.http = c
}

// SetEndpoint replaces the federation URL builder. Test hook.
func (r *Resolver) SetEndpoint(fn func(domain string) string) {
	r.endpoint = fn
}

// IsValid reports whether address is canonical for the active chain.
func (r *Resolver) IsValid(address string) bool {
	return r.adapter.ValidateAddress(address)
}

// Resolve normalizes input into a canonical chain address.
// Canonical addresses pass through after validation; "name*domain" aliases
// are looked up remotely.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidAddress)
	}

	if strings.Contains(input, "*") {
		return r.resolveAlias(ctx, input)
	}

	if !r.adapter.ValidateAddress(input) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, input)
	}
	return input, nil
}

// resolveAlias performs the federation lookup for a "name*domain" alias.
func (r *Resolver) resolveAlias(ctx context.Context, alias string) (string, error) {
	name, domain, ok := strings.Cut(alias, "*")
	if !ok || name == "" || domain == "" || strings.Contains(domain, "*") {
		return "", fmt.Errorf("%w: malformed alias %q", ErrUnresolvableAlias, alias)
	}

	lookupURL := r.endpoint(domain) + "?type=name&q=" + url.QueryEscape(alias)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvableAlias, err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: lookup %s: %v", ErrUnresolvableAlias, domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: lookup %s returned status %d", ErrUnresolvableAlias, domain, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnresolvableAlias, err)
	}

	var record federationRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return "", fmt.Errorf("%w: parse response from %s: %v", ErrUnresolvableAlias, domain, err)
	}
	if record.Address == "" {
		return "", fmt.Errorf("%w: %s returned no address for %q", ErrUnresolvableAlias, domain, alias)
	}
	if !r.adapter.ValidateAddress(record.Address) {
		return "", fmt.Errorf("%w: %s returned non-canonical address for %q", ErrUnresolvableAlias, domain, alias)
	}

	r.logger.Debug().
		Str("alias", alias).
		Str("address", record.Address).
		Msg("resolved alias")

	return record.Address, nil
}
