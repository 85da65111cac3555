package storageclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmux-project/elasticmem/internal/rpctransport"
)

// BlockAddressResolver maps an opaque block id to the network address of
// the storage node currently hosting it.
type BlockAddressResolver func(block string) string

// RemoteClient issues one rpctransport message per StorageClient call
// against the storage node that owns the target block: build a typed
// payload, send, translate the coded Response back into a Go error.
type RemoteClient struct {
	comm    rpctransport.Communicator
	resolve BlockAddressResolver
}

func NewRemoteClient(comm rpctransport.Communicator, resolve BlockAddressResolver) *RemoteClient {
	return &RemoteClient{comm: comm, resolve: resolve}
}

func (c *RemoteClient) call(ctx context.Context, block, msgType string, payload any) (rpctransport.Response, error) {
	resp, err := c.comm.Send(ctx, c.resolve(block), rpctransport.Message{Type: msgType, Payload: payload})
	if err != nil {
		return rpctransport.Response{}, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	if resp.Code != rpctransport.CodeOK {
		return resp, fmt.Errorf("%w: %s: %s", ErrStorageFailed, resp.Code, resp.Error)
	}
	return resp, nil
}

func (c *RemoteClient) SetupBlock(ctx context.Context, block, path string, slotBegin, slotEnd int64, chain []string, autoScale bool, role Role, nextBlock string) error {
	_, err := c.call(ctx, block, MsgSetupBlock, SetupBlockRequest{
		Block: block, Path: path, SlotBegin: slotBegin, SlotEnd: slotEnd,
		Chain: chain, AutoScale: autoScale, Role: role, NextBlock: nextBlock,
	})
	return err
}

func (c *RemoteClient) SetupAndSetImporting(ctx context.Context, block, path string, slotBegin, slotEnd int64, chain []string, role Role, nextBlock string) error {
	_, err := c.call(ctx, block, MsgSetupAndSetImporting, SetupAndSetImportingRequest{
		Block: block, Path: path, SlotBegin: slotBegin, SlotEnd: slotEnd,
		Chain: chain, Role: role, NextBlock: nextBlock,
	})
	return err
}

func (c *RemoteClient) SetExporting(ctx context.Context, block string, targetChain []string, slotBegin, slotEnd int64) error {
	_, err := c.call(ctx, block, MsgSetExporting, SetExportingRequest{
		Block: block, TargetChain: targetChain, SlotBegin: slotBegin, SlotEnd: slotEnd,
	})
	return err
}

func (c *RemoteClient) SetImporting(ctx context.Context, block string, slotBegin, slotEnd int64) error {
	_, err := c.call(ctx, block, MsgSetImporting, SetImportingRequest{Block: block, SlotBegin: slotBegin, SlotEnd: slotEnd})
	return err
}

func (c *RemoteClient) SetRegular(ctx context.Context, block string, slotBegin, slotEnd int64) error {
	_, err := c.call(ctx, block, MsgSetRegular, SetRegularRequest{Block: block, SlotBegin: slotBegin, SlotEnd: slotEnd})
	return err
}

func (c *RemoteClient) Load(ctx context.Context, block, backingPath, path string) error {
	_, err := c.call(ctx, block, MsgLoad, PersistRequest{Block: block, BackingPath: backingPath, Path: path})
	return err
}

func (c *RemoteClient) Dump(ctx context.Context, block, backingPath, path string) error {
	_, err := c.call(ctx, block, MsgDump, PersistRequest{Block: block, BackingPath: backingPath, Path: path})
	return err
}

func (c *RemoteClient) Sync(ctx context.Context, block, backingPath, path string) error {
	_, err := c.call(ctx, block, MsgSync, PersistRequest{Block: block, BackingPath: backingPath, Path: path})
	return err
}

func (c *RemoteClient) Reset(ctx context.Context, block string) error {
	_, err := c.call(ctx, block, MsgReset, BlockRequest{Block: block})
	return err
}

func (c *RemoteClient) StorageSize(ctx context.Context, block string) (int64, error) {
	resp, err := c.call(ctx, block, MsgStorageSize, BlockRequest{Block: block})
	if err != nil {
		return 0, err
	}
	return decodeBytes(resp.Payload)
}

func (c *RemoteClient) StorageCapacity(ctx context.Context, block string) (int64, error) {
	resp, err := c.call(ctx, block, MsgStorageCapacity, BlockRequest{Block: block})
	if err != nil {
		return 0, err
	}
	return decodeBytes(resp.Payload)
}

func (c *RemoteClient) ResendPending(ctx context.Context, block string) error {
	_, err := c.call(ctx, block, MsgResendPending, BlockRequest{Block: block})
	return err
}

func (c *RemoteClient) ForwardAll(ctx context.Context, block string) error {
	_, err := c.call(ctx, block, MsgForwardAll, BlockRequest{Block: block})
	return err
}

// decodeBytes recovers an int64 byte count from a decoded JSON payload,
// where the transport hands back numbers as float64.
func decodeBytes(payload any) (int64, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, errors.New("storageclient: malformed size response")
	}
	v, ok := m["bytes"].(float64)
	if !ok {
		return 0, errors.New("storageclient: missing bytes field in size response")
	}
	return int64(v), nil
}

var _ StorageClient = (*RemoteClient)(nil)
