// File: memory/default.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

import (
	"sync"

	"github.com/momentics/hioload-cmdbuf/api"
)

var (
	defaultOnce     sync.Once
	defaultProvider api.MemoryProvider
)

// Default returns the process-wide provider for the current platform: mmap
// on Linux, the Go heap elsewhere.
func Default() api.MemoryProvider {
	defaultOnce.Do(func() {
		defaultProvider = platformDefault()
	})
	return defaultProvider
}
