// Package leasepolicy supplies the lease-tracking policy behind the
// directory core's handle_lease_expiry hook. The core only ever asks which
// files' leases have elapsed; how leases are granted, renewed, and timed is
// this package's business.
package leasepolicy

import "context"

// LeasePolicy tracks per-file leases. Acquire grants (or re-grants) a lease
// for path, Renew extends it, Release drops it, and Expired drains the set
// of paths whose lease has elapsed since the last call.
type LeasePolicy interface {
	Acquire(ctx context.Context, path string) error
	Renew(ctx context.Context, path string) error
	Release(ctx context.Context, path string) error
	Expired() []string
}

// Never is a LeasePolicy under which no lease ever expires, for tests and
// single-node deployments that run without an external lease store.
type Never struct{}

func (Never) Acquire(context.Context, string) error { return nil }
func (Never) Renew(context.Context, string) error   { return nil }
func (Never) Release(context.Context, string) error { return nil }
func (Never) Expired() []string                     { return nil }

var _ LeasePolicy = Never{}
