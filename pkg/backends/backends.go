// Package backends wires every storage backend into the global registries.
package backends

import (
	"sync"

	"github.com/marmos91/tablestore/pkg/storage/badger"
	"github.com/marmos91/tablestore/pkg/storage/hdfs"
	"github.com/marmos91/tablestore/pkg/storage/memory"
	"github.com/marmos91/tablestore/pkg/storage/s3"
)

var registerOnce sync.Once

// RegisterAll registers the hdfs, memory, badger and s3 backends.
//
// It is safe to call more than once; only the first call registers.
func RegisterAll() {
	registerOnce.Do(func() {
		hdfs.RegisterHandlers()
		memory.RegisterHandlers()
		badger.RegisterHandlers()
		s3.RegisterHandlers()
	})
}
