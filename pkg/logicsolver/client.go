package logicsolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-limiter/memorystore"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// ultimatePermissionFact is one row of the solver's
// `ultimatePermission(receiver, type, giver, _, _, role, _, totalDelay,
// viaList, _)` output relation (spec §4.6).
type ultimatePermissionFact struct {
	Receiver    string        `json:"receiver"`
	Type        string        `json:"type"`
	Giver       string        `json:"giver"`
	Role        string        `json:"role"`
	TotalDelay  uint64        `json:"totalDelay"`
	ViaList     []viaHop      `json:"viaList"`
}

type viaHop struct {
	Address     string `json:"address"`
	AddressType string `json:"addressType"`
	Delay       uint64 `json:"delay"`
}

type solveResponse struct {
	UltimatePermissions []ultimatePermissionFact `json:"ultimatePermissions"`
}

// Client posts a FactSet to an external declarative solver and maps
// its response back into a ResolvedDocument (spec §4.6). Outbound
// calls are rate limited and instrumented the way cmd/api rate limits
// and instruments inbound ones.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    memorystoreLimiter
}

// memorystoreLimiter narrows memorystore.Store to the single method
// Client needs, so tests can substitute a fake without a real store.
type memorystoreLimiter interface {
	Take(ctx context.Context, key string) (tokens, remaining, resetAt uint64, ok bool, err error)
}

// NewClient builds a Client targeting url, allowing at most maxRPS
// outbound solve requests per second.
func NewClient(url string, maxRPS uint64) (*Client, error) {
	store, err := memorystore.New(&memorystore.Config{
		Tokens:   maxRPS,
		Interval: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("creating rate limit store: %s", err)
	}

	return &Client{
		url: url,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		limiter: store,
	}, nil
}

// Resolve builds the fact set for overrides+snapshot, posts it to the
// solver, and maps the response back into a ResolvedDocument with the
// same per-function grouping and dedup semantics as the native engine.
func (c *Client) Resolve(
	ctx context.Context,
	overrides permission.OverridesDocument,
	snapshot permission.DiscoveredSnapshot,
) (permission.ResolvedDocument, error) {
	if _, _, _, ok, err := c.limiter.Take(ctx, "logicsolver"); err != nil {
		return permission.ResolvedDocument{}, errors.Errorf("rate limiter: %s", err)
	} else if !ok {
		return permission.ResolvedDocument{}, errors.New("solver request rate limit exceeded")
	}

	facts := BuildFacts(overrides, snapshot)
	body, err := json.Marshal(facts)
	if err != nil {
		return permission.ResolvedDocument{}, errors.Errorf("marshaling fact set: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return permission.ResolvedDocument{}, errors.Errorf("building solver request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return permission.ResolvedDocument{}, errors.Errorf("calling solver: %s", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return permission.ResolvedDocument{}, errors.Errorf("reading solver response: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		return permission.ResolvedDocument{}, errors.Errorf("solver returned status %d: %s", resp.StatusCode, respBody)
	}

	var sr solveResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return permission.ResolvedDocument{}, errors.Errorf("parsing solver response: %s", err)
	}

	return mapResponse(overrides, snapshot, sr), nil
}

// mapResponse groups ultimatePermission facts back into per-contract,
// per-function ResolvedFunction records, deduplicating ultimate owners
// by (terminal address, via-address sequence) exactly as the native
// Traversal Engine does (spec §4.5, §4.6).
func mapResponse(
	overrides permission.OverridesDocument,
	snapshot permission.DiscoveredSnapshot,
	sr solveResponse,
) permission.ResolvedDocument {
	addressType := func(addr permission.Address) permission.AddressType {
		if entry, ok := snapshot.Lookup(addr); ok {
			return entry.Type
		}
		return permission.AddressTypeUnknown
	}

	type key struct{ receiver, role string }
	byFunction := make(map[key][]permission.UltimateOwnerRecord)

	for _, f := range sr.UltimatePermissions {
		recv, ok := permission.ParseQualifiedAddress(f.Receiver)
		if !ok {
			continue
		}
		giver, ok := permission.ParseQualifiedAddress(f.Giver)
		if !ok {
			continue
		}

		via := make([]permission.ViaStep, 0, len(f.ViaList))
		delays := make([]uint64, 0, len(f.ViaList))
		for _, hop := range f.ViaList {
			hopAddr, ok := permission.ParseQualifiedAddress(hop.Address)
			if !ok {
				continue
			}
			via = append(via, permission.ViaStep{
				Address:     hopAddr,
				AddressType: permission.AddressType(hop.AddressType),
				HasDelay:    hop.Delay > 0,
				DelaySecs:   hop.Delay,
			})
			if hop.Delay > 0 {
				delays = append(delays, hop.Delay)
			}
		}

		k := key{receiver: recv.Normalized(), role: f.Role}
		byFunction[k] = append(byFunction[k], permission.UltimateOwnerRecord{
			Address:         giver,
			AddressType:     addressType(giver),
			Via:             via,
			Delays:          delays,
			CumulativeDelay: f.TotalDelay,
		})
	}

	contractAddrs := make([]string, 0, len(overrides.Contracts))
	for addr := range overrides.Contracts {
		contractAddrs = append(contractAddrs, addr)
	}
	sort.Strings(contractAddrs)

	var resolved []permission.ResolvedContract
	for _, addrKey := range contractAddrs {
		fns := overrides.PermissionedFunctions(addrKey)
		if len(fns) == 0 {
			continue
		}

		resolvedFns := make([]permission.ResolvedFunction, 0, len(fns))
		for _, fn := range fns {
			records := permission.DedupeUltimateOwners(byFunction[key{receiver: addrKey, role: fn.FunctionName}])
			resolvedFns = append(resolvedFns, permission.ResolvedFunction{
				FunctionName:   fn.FunctionName,
				UltimateOwners: records,
			})
		}
		resolved = append(resolved, permission.ResolvedContract{Address: addrKey, Functions: resolvedFns})
	}

	return permission.ResolvedDocument{
		Version:      overrides.Version,
		LastModified: time.Now().UTC(),
		Contracts:    resolved,
	}
}
