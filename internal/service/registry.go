package service

import "github.com/mmux-project/elasticmem/internal/rpctransport"

// NewPayloadRegistry returns the PayloadRegistry a listener needs to
// decode every message type this adapter handles, built as one table.
func NewPayloadRegistry() rpctransport.PayloadRegistry {
	reg := make(rpctransport.PayloadRegistry)
	reg.Register(MsgCreateDirectory, PathRequest{})
	reg.Register(MsgCreateDirectories, PathRequest{})
	reg.Register(MsgCreate, CreateRequest{})
	reg.Register(MsgOpen, PathRequest{})
	reg.Register(MsgOpenOrCreate, CreateRequest{})
	reg.Register(MsgExists, PathRequest{})
	reg.Register(MsgIsDirectory, PathRequest{})
	reg.Register(MsgIsRegularFile, PathRequest{})
	reg.Register(MsgStatus, PathRequest{})
	reg.Register(MsgLastWriteTime, PathRequest{})
	reg.Register(MsgGetPermissions, PathRequest{})
	reg.Register(MsgSetPermissions, SetPermissionsRequest{})
	reg.Register(MsgDStatus, PathRequest{})
	reg.Register(MsgAddTags, AddTagsRequest{})
	reg.Register(MsgTouch, PathRequest{})
	reg.Register(MsgRename, RenameRequest{})
	reg.Register(MsgRemove, PathRequest{})
	reg.Register(MsgRemoveAll, PathRequest{})
	reg.Register(MsgDirectoryEntries, PathRequest{})
	reg.Register(MsgRecursiveDirectoryEntries, PathRequest{})
	reg.Register(MsgFileSize, PathRequest{})
	reg.Register(MsgAddBlock, PathRequest{})
	reg.Register(MsgSplitSlotRange, SlotRangeRequest{})
	reg.Register(MsgMergeSlotRange, SlotRangeRequest{})
	reg.Register(MsgResolveFailures, ChainRequest{})
	reg.Register(MsgAddReplicaToChain, ChainRequest{})
	reg.Register(MsgRemoveDataBlock, RemoveDataBlockRequest{})
	reg.Register(MsgRemoveAllDataBlocks, PathRequest{})
	reg.Register(MsgSync, SyncRequest{})
	reg.Register(MsgDump, SyncRequest{})
	reg.Register(MsgLoad, LoadRequest{})
	reg.Register(MsgHandleLeaseExpiry, PathRequest{})
	return reg
}
