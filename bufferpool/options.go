package bufferpool

import "github.com/ryogrid/pagecache/diskio"

// Options configures a Manager. There is no persisted configuration
// file or wire format — this is a plain in-process struct, mirroring
// array-db's utils.Options/DefaultOptions shape.
type Options struct {
	// PoolSize is the number of frames the pool holds (N in spec.md).
	PoolSize int

	// ReplacerK is the LRU-K history depth.
	ReplacerK int

	// Disk is the Manager backing the pool's reads and writes.
	Disk diskio.Manager
}

// DefaultOptions returns sane defaults for a pool backed by an
// in-memory disk manager, suitable for tests and quick experiments.
// Production callers override Disk with a diskio.FileManager.
func DefaultOptions() Options {
	return Options{
		PoolSize:  128,
		ReplacerK: 2,
		Disk:      diskio.NewMemManager(),
	}
}
