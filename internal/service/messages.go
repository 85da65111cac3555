package service

import "github.com/mmux-project/elasticmem/internal/dirtree"

// Message type constants for the directory interface's RPC surface,
// one per Tree operation, each with a typed payload struct.
const (
	MsgCreateDirectory           = "create_directory"
	MsgCreateDirectories         = "create_directories"
	MsgCreate                    = "create"
	MsgOpen                      = "open"
	MsgOpenOrCreate              = "open_or_create"
	MsgExists                    = "exists"
	MsgIsDirectory               = "is_directory"
	MsgIsRegularFile             = "is_regular_file"
	MsgStatus                    = "status"
	MsgLastWriteTime             = "last_write_time"
	MsgGetPermissions            = "get_permissions"
	MsgSetPermissions            = "set_permissions"
	MsgDStatus                   = "dstatus"
	MsgAddTags                   = "add_tags"
	MsgTouch                     = "touch"
	MsgRename                    = "rename"
	MsgRemove                    = "remove"
	MsgRemoveAll                 = "remove_all"
	MsgDirectoryEntries          = "directory_entries"
	MsgRecursiveDirectoryEntries = "recursive_directory_entries"
	MsgFileSize                  = "file_size"
	MsgAddBlock                  = "add_block"
	MsgSplitSlotRange            = "split_slot_range"
	MsgMergeSlotRange            = "merge_slot_range"
	MsgResolveFailures           = "resolve_failures"
	MsgAddReplicaToChain         = "add_replica_to_chain"
	MsgRemoveDataBlock           = "remove_data_block"
	MsgRemoveAllDataBlocks       = "remove_all_data_blocks"
	MsgSync                      = "sync"
	MsgDump                      = "dump"
	MsgLoad                      = "load"
	MsgHandleLeaseExpiry         = "handle_lease_expiry"
)

type PathRequest struct {
	Path string
}

type CreateRequest struct {
	Path        string
	BackingPath string
	NumBlocks   int
	ChainLength int
	Flags       dirtree.Flags
	Permissions dirtree.Permissions
	Tags        map[string]string
}

func (r CreateRequest) options() dirtree.CreateFileOptions {
	return dirtree.CreateFileOptions{
		BackingPath: r.BackingPath,
		NumBlocks:   r.NumBlocks,
		ChainLength: r.ChainLength,
		Flags:       r.Flags,
		Permissions: r.Permissions,
		Tags:        r.Tags,
	}
}

type DataStatusResponse struct {
	DataStatus dirtree.DataStatus
}

type BoolResponse struct {
	Result bool
}

type Int64Response struct {
	Value int64
}

type FileStatusResponse struct {
	Status dirtree.FileStatus
}

type PermissionsResponse struct {
	Permissions dirtree.Permissions
}

type SetPermissionsRequest struct {
	Path        string
	Permissions dirtree.Permissions
	Option      dirtree.PermOption
}

type AddTagsRequest struct {
	Path string
	Tags map[string]string
}

type RenameRequest struct {
	OldPath string
	NewPath string
}

type EntriesResponse struct {
	Entries []dirtree.DirectoryEntry
}

type SlotRangeRequest struct {
	Path  string
	Begin int64
	End   int64
}

type ChainRequest struct {
	Path  string
	Chain dirtree.ReplicaChain
}

type ChainResponse struct {
	Chain dirtree.ReplicaChain
}

type RemoveDataBlockRequest struct {
	Path  string
	Index int
}

type SyncRequest struct {
	Path        string
	BackingPath string
}

type DumpResponse struct {
	Cleared []string
}

type LoadRequest struct {
	Path      string
	NumBlocks int
}
