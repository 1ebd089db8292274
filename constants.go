package diagsdk

import "github.com/memfault/diagsdk/internal/constants"

// Re-exported defaults for public API consumers who want to size their
// own buffers or config the same way Default() does.
const (
	DefaultCoredumpStorageSize = constants.DefaultCoredumpStorageSize
	DefaultEventStorageLen     = constants.DefaultEventStorageLen
	DefaultLogRingLen          = constants.DefaultLogRingLen
	DefaultSingleChunkLen      = constants.DefaultSingleChunkLen
	MinChunkBufLen             = constants.MinChunkBufLen
	DefaultAPIHost             = constants.DefaultAPIHost
	SDKVersion                 = constants.SDKVersion
)
