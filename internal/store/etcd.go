package store

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const dialTimeout = 5 * time.Second

// Etcd is a KV pinned to a single etcd endpoint.
type Etcd struct {
	cli  *clientv3.Client
	addr string
}

// OpenEtcd dials addr with a bounded dial timeout.
func OpenEtcd(ctx context.Context, addr string) (KV, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{addr},
		DialTimeout: dialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Etcd{cli: cli, addr: addr}, nil
}

func (e *Etcd) Put(ctx context.Context, key, value string) error {
	_, err := e.cli.Put(ctx, key, value)
	return err
}

// Get fetches key. A missing key is not an error; the benchmark only
// cares that the round trip succeeded.
func (e *Etcd) Get(ctx context.Context, key string) (string, error) {
	resp, err := e.cli.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if len(resp.Kvs) == 0 {
		return "", nil
	}
	return string(resp.Kvs[0].Value), nil
}

func (e *Etcd) Close() error { return e.cli.Close() }

// ProbeEtcd checks that addr answers a Status call within the context
// deadline. Used by the resolver to validate candidate endpoints.
func ProbeEtcd(ctx context.Context, addr string) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{addr},
		DialTimeout: dialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return err
	}
	defer cli.Close()

	_, err = cli.Status(ctx, addr)
	return err
}

// DiscoverEtcd asks addr for cluster membership and returns the client
// URLs of every advertised member.
func DiscoverEtcd(ctx context.Context, addr string) ([]string, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{addr},
		DialTimeout: dialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	resp, err := cli.MemberList(ctx)
	if err != nil {
		return nil, err
	}
	var addrs []string
	for _, m := range resp.Members {
		addrs = append(addrs, m.ClientURLs...)
	}
	return addrs, nil
}
