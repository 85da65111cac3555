// Package service is the external service adapter: it turns rpctransport
// messages into calls against a shared dirtree.Tree and errors into a
// single transport-visible error string.
package service

import (
	"context"
	"sync"

	"github.com/mmux-project/elasticmem/internal/dirtree"
	"github.com/mmux-project/elasticmem/internal/log_service"
	"github.com/mmux-project/elasticmem/internal/rpctransport"
)

// DirectoryHandler dispatches every message type registered in
// NewPayloadRegistry against a shared tree. It carries no per-request
// state, so one instance is safe to reuse across every connection.
type DirectoryHandler struct {
	tree *dirtree.Tree
	ls   log_service.LogService
}

func NewDirectoryHandler(tree *dirtree.Tree, ls log_service.LogService) *DirectoryHandler {
	return &DirectoryHandler{tree: tree, ls: ls}
}

// Connection wraps a DirectoryHandler with the "created on connect,
// destroyed on disconnect" lifecycle, without adding any handling state
// of its own. Close is the only thing that is per-connection, and it is
// idempotent since both the transport and the application may observe a
// disconnect and try to tear it down.
type Connection struct {
	*DirectoryHandler
	closeOnce sync.Once
}

func (h *DirectoryHandler) NewConnection() *Connection {
	return &Connection{DirectoryHandler: h}
}

func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.ls.Debug(log_service.LogEvent{Message: "directory service connection closed"})
	})
	return nil
}

func (h *DirectoryHandler) Handle(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	switch msg.Type {
	case MsgCreateDirectory:
		return h.handleCreateDirectory(msg)
	case MsgCreateDirectories:
		return h.handleCreateDirectories(msg)
	case MsgCreate:
		return h.handleCreate(ctx, msg)
	case MsgOpen:
		return h.handleOpen(msg)
	case MsgOpenOrCreate:
		return h.handleOpenOrCreate(ctx, msg)
	case MsgExists:
		return h.handleExists(msg)
	case MsgIsDirectory:
		return h.handleIsDirectory(msg)
	case MsgIsRegularFile:
		return h.handleIsRegularFile(msg)
	case MsgStatus:
		return h.handleStatus(msg)
	case MsgLastWriteTime:
		return h.handleLastWriteTime(msg)
	case MsgGetPermissions:
		return h.handleGetPermissions(msg)
	case MsgSetPermissions:
		return h.handleSetPermissions(msg)
	case MsgDStatus:
		return h.handleDStatus(msg)
	case MsgAddTags:
		return h.handleAddTags(msg)
	case MsgTouch:
		return h.handleTouch(msg)
	case MsgRename:
		return h.handleRename(msg)
	case MsgRemove:
		return h.handleRemove(ctx, msg)
	case MsgRemoveAll:
		return h.handleRemoveAll(ctx, msg)
	case MsgDirectoryEntries:
		return h.handleDirectoryEntries(msg)
	case MsgRecursiveDirectoryEntries:
		return h.handleRecursiveDirectoryEntries(msg)
	case MsgFileSize:
		return h.handleFileSize(ctx, msg)
	case MsgAddBlock:
		return h.handleAddBlock(ctx, msg)
	case MsgSplitSlotRange:
		return h.handleSplitSlotRange(ctx, msg)
	case MsgMergeSlotRange:
		return h.handleMergeSlotRange(ctx, msg)
	case MsgResolveFailures:
		return h.handleResolveFailures(ctx, msg)
	case MsgAddReplicaToChain:
		return h.handleAddReplicaToChain(ctx, msg)
	case MsgRemoveDataBlock:
		return h.handleRemoveDataBlock(ctx, msg)
	case MsgRemoveAllDataBlocks:
		return h.handleRemoveAllDataBlocks(ctx, msg)
	case MsgSync:
		return h.handleSync(ctx, msg)
	case MsgDump:
		return h.handleDump(ctx, msg)
	case MsgLoad:
		return h.handleLoad(ctx, msg)
	case MsgHandleLeaseExpiry:
		return h.handleHandleLeaseExpiry(ctx, msg)
	default:
		return rpctransport.Response{Code: rpctransport.CodeBadRequest, Error: rpctransport.ErrUnknownMessageType.Error()}
	}
}

func errResponse(err error) rpctransport.Response {
	code := rpctransport.CodeInternal
	if c, ok := dirtree.CodeOf(err); ok {
		switch c {
		case dirtree.CodeNotFound:
			code = rpctransport.CodeNotFound
		case dirtree.CodeInvalidArgument, dirtree.CodeExists, dirtree.CodeIsDirectory,
			dirtree.CodeNotDirectory, dirtree.CodeDirectoryNotEmpty, dirtree.CodeAtCapacity,
			dirtree.CodeBusy, dirtree.CodeNoPartner:
			code = rpctransport.CodeBadRequest
		case dirtree.CodeStorageError, dirtree.CodeIOError:
			code = rpctransport.CodeUnavailable
		}
	}
	return rpctransport.Response{Code: code, Error: err.Error()}
}

func ok(payload any) rpctransport.Response {
	return rpctransport.Response{Code: rpctransport.CodeOK, Payload: payload}
}

func asRequest[T any](msg rpctransport.Message) (T, bool) {
	req, ok := msg.Payload.(T)
	return req, ok
}

func (h *DirectoryHandler) handleCreateDirectory(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.CreateDirectory(req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleCreateDirectories(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.CreateDirectories(req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleCreate(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[CreateRequest](msg)
	if !valid {
		return badPayload()
	}
	ds, err := h.tree.Create(ctx, req.Path, req.options())
	if err != nil {
		return errResponse(err)
	}
	return ok(DataStatusResponse{DataStatus: ds})
}

func (h *DirectoryHandler) handleOpen(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	ds, err := h.tree.Open(req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(DataStatusResponse{DataStatus: ds})
}

func (h *DirectoryHandler) handleOpenOrCreate(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[CreateRequest](msg)
	if !valid {
		return badPayload()
	}
	ds, err := h.tree.OpenOrCreate(ctx, req.Path, req.options())
	if err != nil {
		return errResponse(err)
	}
	return ok(DataStatusResponse{DataStatus: ds})
}

func (h *DirectoryHandler) handleExists(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	return ok(BoolResponse{Result: h.tree.Exists(req.Path)})
}

func (h *DirectoryHandler) handleIsDirectory(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	return ok(BoolResponse{Result: h.tree.IsDirectory(req.Path)})
}

func (h *DirectoryHandler) handleIsRegularFile(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	return ok(BoolResponse{Result: h.tree.IsRegularFile(req.Path)})
}

func (h *DirectoryHandler) handleStatus(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	st, err := h.tree.Status(req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(FileStatusResponse{Status: st})
}

func (h *DirectoryHandler) handleLastWriteTime(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	ms, err := h.tree.LastWriteTime(req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(Int64Response{Value: ms})
}

func (h *DirectoryHandler) handleGetPermissions(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	p, err := h.tree.GetPermissions(req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(PermissionsResponse{Permissions: p})
}

func (h *DirectoryHandler) handleSetPermissions(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[SetPermissionsRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.SetPermissions(req.Path, req.Permissions, req.Option); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleDStatus(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	ds, err := h.tree.DStatus(req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(DataStatusResponse{DataStatus: ds})
}

func (h *DirectoryHandler) handleAddTags(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[AddTagsRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.AddTags(req.Path, req.Tags); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleTouch(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.Touch(req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleRename(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[RenameRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.Rename(req.OldPath, req.NewPath); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleRemove(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.Remove(ctx, req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleRemoveAll(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.RemoveAll(ctx, req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleDirectoryEntries(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	entries, err := h.tree.DirectoryEntries(req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(EntriesResponse{Entries: entries})
}

func (h *DirectoryHandler) handleRecursiveDirectoryEntries(msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	entries, err := h.tree.RecursiveDirectoryEntries(req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(EntriesResponse{Entries: entries})
}

func (h *DirectoryHandler) handleFileSize(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	sz, err := h.tree.FileSize(ctx, req.Path)
	if err != nil {
		return errResponse(err)
	}
	return ok(Int64Response{Value: sz})
}

func (h *DirectoryHandler) handleAddBlock(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.AddBlock(ctx, req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleSplitSlotRange(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[SlotRangeRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.SplitSlotRange(ctx, req.Path, req.Begin, req.End); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleMergeSlotRange(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[SlotRangeRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.MergeSlotRange(ctx, req.Path, req.Begin, req.End); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleResolveFailures(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[ChainRequest](msg)
	if !valid {
		return badPayload()
	}
	chain, err := h.tree.ResolveFailures(ctx, req.Path, req.Chain)
	if err != nil {
		return errResponse(err)
	}
	return ok(ChainResponse{Chain: chain})
}

func (h *DirectoryHandler) handleAddReplicaToChain(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[ChainRequest](msg)
	if !valid {
		return badPayload()
	}
	chain, err := h.tree.AddReplicaToChain(ctx, req.Path, req.Chain)
	if err != nil {
		return errResponse(err)
	}
	return ok(ChainResponse{Chain: chain})
}

func (h *DirectoryHandler) handleRemoveDataBlock(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[RemoveDataBlockRequest](msg)
	if !valid {
		return badPayload()
	}
	chain, err := h.tree.RemoveDataBlock(ctx, req.Path, req.Index)
	if err != nil {
		return errResponse(err)
	}
	return ok(ChainResponse{Chain: chain})
}

func (h *DirectoryHandler) handleRemoveAllDataBlocks(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.RemoveAllDataBlocks(ctx, req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleSync(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[SyncRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.Sync(ctx, req.Path, req.BackingPath); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleDump(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[SyncRequest](msg)
	if !valid {
		return badPayload()
	}
	cleared, err := h.tree.Dump(ctx, req.Path, req.BackingPath)
	if err != nil {
		return errResponse(err)
	}
	return ok(DumpResponse{Cleared: cleared})
}

func (h *DirectoryHandler) handleLoad(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[LoadRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.Load(ctx, req.Path, req.NumBlocks); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func (h *DirectoryHandler) handleHandleLeaseExpiry(ctx context.Context, msg rpctransport.Message) rpctransport.Response {
	req, valid := asRequest[PathRequest](msg)
	if !valid {
		return badPayload()
	}
	if err := h.tree.HandleLeaseExpiry(ctx, req.Path); err != nil {
		return errResponse(err)
	}
	return ok(nil)
}

func badPayload() rpctransport.Response {
	return rpctransport.Response{Code: rpctransport.CodeBadRequest, Error: ErrInvalidPayloadType.Error()}
}

var _ rpctransport.Handler = (*DirectoryHandler)(nil)
