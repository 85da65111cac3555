package storageclient

import "errors"

var (
	ErrStorageFailed  = errors.New("storageclient: storage management call failed")
	ErrTransportError = errors.New("storageclient: transport error")
)
