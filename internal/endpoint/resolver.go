package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoEndpoints means resolution finished with zero reachable store
// nodes. It is fatal for the run.
var ErrNoEndpoints = errors.New("no reachable endpoints")

// Endpoint is one network-reachable node of the target store.
type Endpoint struct {
	Address string
	Healthy bool
}

// ProbeFunc checks that one address answers within the context deadline.
type ProbeFunc func(ctx context.Context, addr string) error

// DiscoverFunc queries one address for cluster membership and returns
// the advertised client addresses.
type DiscoverFunc func(ctx context.Context, addr string) ([]string, error)

// Resolver turns candidate addresses into a validated, de-duplicated
// endpoint set. Probe failures exclude a candidate but are not fatal as
// long as at least one endpoint remains.
type Resolver struct {
	Probe        ProbeFunc
	Discover     DiscoverFunc
	ProbeTimeout time.Duration
	Log          *slog.Logger
}

func (r *Resolver) probeTimeout() time.Duration {
	if r.ProbeTimeout > 0 {
		return r.ProbeTimeout
	}
	return 5 * time.Second
}

func (r *Resolver) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// Resolve validates the explicit list when non-empty, otherwise asks
// the discovery hint for cluster membership and validates what it
// advertises.
func (r *Resolver) Resolve(ctx context.Context, explicit []string, hint string) ([]Endpoint, error) {
	candidates := dedupe(explicit)

	if len(candidates) == 0 {
		if hint == "" {
			return nil, fmt.Errorf("%w: no endpoints supplied and no discovery hint", ErrNoEndpoints)
		}
		dctx, cancel := context.WithTimeout(ctx, r.probeTimeout())
		members, err := r.Discover(dctx, hint)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: membership probe against %s: %v", ErrNoEndpoints, hint, err)
		}
		candidates = dedupe(members)
	}

	var eps []Endpoint
	for _, addr := range candidates {
		pctx, cancel := context.WithTimeout(ctx, r.probeTimeout())
		err := r.Probe(pctx, addr)
		cancel()
		if err != nil {
			r.logger().Warn("endpoint probe failed, excluding", "addr", addr, "err", err)
			continue
		}
		eps = append(eps, Endpoint{Address: addr, Healthy: true})
	}

	if len(eps) == 0 {
		return nil, fmt.Errorf("%w: probed %d candidates", ErrNoEndpoints, len(candidates))
	}
	return eps, nil
}

// dedupe preserves first-seen order.
func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	var out []string
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Addresses extracts the address list, mostly for config echo.
func Addresses(eps []Endpoint) []string {
	out := make([]string, len(eps))
	for i, ep := range eps {
		out[i] = ep.Address
	}
	return out
}
