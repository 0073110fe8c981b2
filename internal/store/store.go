package store

import "context"

// KV is the minimal surface of the target store the benchmark needs.
// Workers only ever issue point reads and writes, so the real etcd
// client and the in-memory store used by tests both fit behind it.
type KV interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Close() error
}

// OpenFunc dials one endpoint and returns a KV bound to it. Each worker
// directs every operation at a specific endpoint, so the coordinator
// opens one client per resolved endpoint.
type OpenFunc func(ctx context.Context, addr string) (KV, error)
