// Package registry advertises a running node in etcd.
package registry

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const nodesPrefix = "/cachelab/nodes/"

// Client is the subset of *clientv3.Client used for registration.
type Client interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

func NewClient(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
}

// NodeKey is the etcd key a node is registered under.
func NodeKey(id string) string {
	return nodesPrefix + id
}

// RegisterNode puts id -> addr under a lease of ttl seconds and keeps the
// lease alive until cancel is called or the client is closed.
func RegisterNode(ctx context.Context, cli Client, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("grant lease: %w", err)
	}
	if _, err := cli.Put(ctx, NodeKey(id), addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("put %s: %w", NodeKey(id), err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("keepalive: %w", err)
	}
	go func() {
		// drain so the client does not log a full-channel warning
		for range ch {
		}
	}()

	return lease.ID, cancel, nil
}

// Deregister revokes the lease, which removes the node key immediately.
func Deregister(ctx context.Context, cli Client, id clientv3.LeaseID) error {
	if _, err := cli.Revoke(ctx, id); err != nil {
		return fmt.Errorf("revoke lease %x: %w", int64(id), err)
	}
	return nil
}
