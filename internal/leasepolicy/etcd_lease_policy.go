package leasepolicy

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/mmux-project/elasticmem/internal/log_service"
)

const (
	EtcdDialTimeout = 5 * time.Second
	LeaseTTL        = 5 // seconds
	PrefixLease     = "/elasticmem/leases/"
)

// EtcdLeasePolicy backs LeasePolicy with an etcd lease per file path: Acquire
// grants a lease and puts the path's key under it, Renew keeps it alive, and
// a watch on the lease prefix observes the deletes etcd issues when a lease
// times out, queueing those paths for the next Expired call.
type EtcdLeasePolicy struct {
	mu        sync.Mutex
	client    *clientv3.Client
	endpoints []string
	ls        log_service.LogService

	leases  map[string]clientv3.LeaseID
	expired []string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewEtcdLeasePolicy(endpoints []string, ls log_service.LogService) *EtcdLeasePolicy {
	return &EtcdLeasePolicy{
		endpoints: endpoints,
		ls:        ls,
		leases:    make(map[string]clientv3.LeaseID),
		stopCh:    make(chan struct{}),
	}
}

func (p *EtcdLeasePolicy) Start(ctx context.Context) error {
	p.ls.Info(log_service.LogEvent{Message: "Starting EtcdLeasePolicy", Metadata: map[string]any{"endpoints": p.endpoints}})

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   p.endpoints,
		DialTimeout: EtcdDialTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to etcd: %w", err)
	}
	p.client = cli

	p.wg.Add(1)
	go p.watchLoop()

	return nil
}

func (p *EtcdLeasePolicy) Stop(ctx context.Context) error {
	p.ls.Info(log_service.LogEvent{Message: "Stopping EtcdLeasePolicy"})
	close(p.stopCh)

	p.mu.Lock()
	ids := make([]clientv3.LeaseID, 0, len(p.leases))
	for _, id := range p.leases {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		if _, err := p.client.Revoke(ctx, id); err != nil {
			p.ls.Warn(log_service.LogEvent{Message: "Failed to revoke lease during shutdown", Metadata: map[string]any{"error": err.Error()}})
		}
	}

	p.wg.Wait()
	return p.client.Close()
}

func (p *EtcdLeasePolicy) Acquire(ctx context.Context, path string) error {
	resp, err := p.client.Grant(ctx, LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	key := PrefixLease + path
	if _, err := p.client.Put(ctx, key, "1", clientv3.WithLease(resp.ID)); err != nil {
		return fmt.Errorf("failed to put lease key: %w", err)
	}

	p.mu.Lock()
	p.leases[path] = resp.ID
	p.mu.Unlock()

	p.ls.Debug(log_service.LogEvent{Message: "Lease acquired", Metadata: map[string]any{"path": path, "leaseID": resp.ID}})
	return nil
}

func (p *EtcdLeasePolicy) Renew(ctx context.Context, path string) error {
	p.mu.Lock()
	id, ok := p.leases[path]
	p.mu.Unlock()
	if !ok {
		return ErrLeaseNotHeld
	}

	if _, err := p.client.KeepAliveOnce(ctx, id); err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	return nil
}

func (p *EtcdLeasePolicy) Release(ctx context.Context, path string) error {
	p.mu.Lock()
	id, ok := p.leases[path]
	delete(p.leases, path)
	p.mu.Unlock()
	if !ok {
		return ErrLeaseNotHeld
	}

	if _, err := p.client.Revoke(ctx, id); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	return nil
}

// Expired drains the set of paths whose lease etcd has timed out since the
// last call.
func (p *EtcdLeasePolicy) Expired() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.expired
	p.expired = nil
	return out
}

func (p *EtcdLeasePolicy) watchLoop() {
	defer p.wg.Done()

	watchCh := p.client.Watch(context.Background(), PrefixLease, clientv3.WithPrefix())

	for {
		select {
		case <-p.stopCh:
			return
		case resp := <-watchCh:
			for _, ev := range resp.Events {
				p.handleEvent(ev)
			}
		}
	}
}

func (p *EtcdLeasePolicy) handleEvent(ev *clientv3.Event) {
	if ev.Type != clientv3.EventTypeDelete {
		return
	}
	key := string(ev.Kv.Key)
	if len(key) <= len(PrefixLease) {
		return
	}
	path := key[len(PrefixLease):]

	p.mu.Lock()
	// A Release revokes the lease and deletes the key too; only a delete for
	// a lease we still think we hold is an expiry.
	_, held := p.leases[path]
	if held {
		delete(p.leases, path)
		p.expired = append(p.expired, path)
	}
	p.mu.Unlock()

	if held {
		p.ls.Info(log_service.LogEvent{Message: "Lease expired", Metadata: map[string]any{"path": path}})
	}
}

var _ LeasePolicy = (*EtcdLeasePolicy)(nil)
