// Completion: 100% - Module complete

// Package codecache provides the executable memory arena generated blocks
// are committed into. drc_cache's growth/flush policy is out of scope; this
// is the minimal concrete arena needed to actually run generated code
// end to end, wrapping golang.org/x/sys/unix.Mmap the way the broader JIT
// examples in this corpus allocate their code buffers.
package codecache

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Cache is a single fixed-size mmap'd arena. Blocks are committed
// sequentially; there is no compaction or individual block freeing, matching
// the "retry whole generation on exhaustion" contract the block generator
// expects.
type Cache struct {
	mem      []byte
	used     int
	executable bool
}

// New allocates a read/write arena of the given size.
func New(size int) (*Cache, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("codecache: mmap: %w", err)
	}
	return &Cache{mem: mem}, nil
}

// Close unmaps the arena.
func (c *Cache) Close() error {
	if c.mem == nil {
		return nil
	}
	err := unix.Munmap(c.mem)
	c.mem = nil
	return err
}

// Remaining reports how many bytes are left before the arena is exhausted.
func (c *Cache) Remaining() int { return len(c.mem) - c.used }

// NextOffset returns the byte offset the next Commit will land at, letting
// a caller predict a block's final address before it has finished
// assembling it (safe because generation is synchronous and single-
// threaded: nothing else can advance the bump pointer in between).
func (c *Cache) NextOffset() int { return c.used }

// AlignTo advances the bump pointer to the next multiple of align, so the
// block that follows starts cache-line aligned. The skipped bytes are
// wasted, matching the teacher's own alignment padding.
func (c *Cache) AlignTo(align int) {
	rem := c.used % align
	if rem != 0 {
		c.used += align - rem
	}
}

// Commit copies code into the arena and returns its base address, failing
// if the arena doesn't have room. Generate reports that failure as a
// LevelRetry GenError; the arena is never grown and no new cache is created.
func (c *Cache) Commit(code []byte) (uintptr, error) {
	if c.executable {
		return 0, fmt.Errorf("codecache: cannot commit into an already-executable cache")
	}
	if len(code) > c.Remaining() {
		return 0, fmt.Errorf("codecache: exhausted (%d bytes requested, %d remaining)", len(code), c.Remaining())
	}
	base := c.used
	copy(c.mem[base:], code)
	c.used += len(code)
	return c.Addr(base), nil
}

// Addr returns the absolute address of byte offset off within the arena,
// valid for computing PC-relative branch targets before Finalize.
func (c *Cache) Addr(off int) uintptr {
	return uintptr(unsafe.Pointer(&c.mem[off]))
}

// BaseAddr returns the arena's start address.
func (c *Cache) BaseAddr() uintptr { return c.Addr(0) }

// Finalize flips the arena from writable to executable via mprotect. After
// this call Commit can no longer be used; a new block requires a new Cache
// (or a real implementation would track writable/executable regions
// separately, out of scope here).
func (c *Cache) Finalize() error {
	if err := unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("codecache: mprotect: %w", err)
	}
	c.executable = true
	return nil
}
