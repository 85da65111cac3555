package leasepolicy

import "errors"

var (
	ErrLeaseNotHeld = errors.New("no lease held for path")
)
