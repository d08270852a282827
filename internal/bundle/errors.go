package bundle

import "errors"

// Error taxonomy per §7: transient I/O is recovered from silently at the
// call site, but Integrity/Protocol/Logic failures abort the whole Accept
// and are surfaced to the caller as these sentinels.

// ErrProtocol covers a bundle that cannot be unarchived, whose Delta.txt
// cannot be deserialized, or whose foreign history doesn't start Created.
var ErrProtocol = errors.New("bundle: protocol error")

// ErrIntegrity covers an extracted blob whose name does not match its
// content hash, or a referenced blob absent after merge.
var ErrIntegrity = errors.New("bundle: integrity error")

// dirPerms and filePerms match the metadata file conventions used
// throughout the repository.
const (
	dirPerms  = 0o755
	filePerms = 0o644
)
