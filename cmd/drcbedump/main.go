// Completion: 100% - Module complete

// Command drcbedump assembles a small fixed UML instruction stream,
// lowers it through the AArch64 back end, and dumps the resulting code
// bytes. On an arm64 host it also executes the block and reports the
// machine-state side effect, exercising the generator end to end the same
// way the package's own integration tests do.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/spf13/cobra"

	drcbearm64 "github.com/xyproto/drcbearm64"
	"github.com/xyproto/drcbearm64/codecache"
	"github.com/xyproto/drcbearm64/drcbeconfig"
	"github.com/xyproto/drcbearm64/hashtable"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	var cacheBytes int

	root := &cobra.Command{
		Use:   "drcbedump",
		Short: "Generate and inspect one fixed AArch64 recompiler block",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := drcbeconfig.Load()
			if cmd.Flags().Changed("cache-bytes") {
				cfg.CacheBytes = cacheBytes
			}
			drcbearm64.VerboseMode = verbose || cfg.Verbose
			return dump(cfg)
		},
	}
	root.Flags().BoolVar(&verbose, "verbose", false, "trace each lowered opcode to stderr")
	root.Flags().IntVar(&cacheBytes, "cache-bytes", 0, "code cache arena size (defaults to DRCBE_CACHE_BYTES or 1MiB)")
	return root
}

// buffer is the scratch word the fixture program writes through, standing
// in for a guest memory cell a real front end would back with its own
// address space.
var buffer [8]byte

func dump(cfg drcbeconfig.Config) error {
	cache, err := codecache.New(cfg.CacheBytes)
	if err != nil {
		return err
	}
	defer cache.Close()

	var state drcbearm64.MachineState
	basePtr := uintptr(unsafe.Pointer(&state))
	gen := drcbearm64.NewGenerator(basePtr, 0, cache, hashtable.New())

	bufAddr := uintptr(unsafe.Pointer(&buffer[0]))
	instructions := []drcbearm64.Instruction{
		// I0 = 0x1122334455667788
		{
			Op: drcbearm64.OpMov, Size: drcbearm64.Size8,
			Param: [4]drcbearm64.Param{
				drcbearm64.IntRegParam(0),
				drcbearm64.ImmParam(0x1122334455667788),
			},
			NumParams: 2,
		},
		// *bufAddr = I0
		{
			Op: drcbearm64.OpStore, Size: drcbearm64.Size8,
			Param: [4]drcbearm64.Param{
				drcbearm64.ImmParam(uint64(bufAddr)),
				drcbearm64.ImmParam(0),
				drcbearm64.ImmParam(1),
				drcbearm64.IntRegParam(0),
			},
			NumParams: 4,
		},
		// exit 0
		{
			Op: drcbearm64.OpExit, Size: drcbearm64.Size4,
			Param:     [4]drcbearm64.Param{drcbearm64.ImmParam(0)},
			NumParams: 1,
		},
	}

	entry, err := gen.Generate(instructions)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	code := unsafe.Slice((*byte)(unsafe.Pointer(entry)), codeLength(cache, entry))
	fmt.Printf("entry: %#x (%d bytes)\n", entry, len(code))
	for i := 0; i < len(code); i += 4 {
		fmt.Printf("%04x: %08x\n", i, binary.LittleEndian.Uint32(code[i:]))
	}

	if runtime.GOARCH != "arm64" {
		fmt.Fprintln(os.Stderr, "skipping execution: host is not arm64")
		return nil
	}
	if err := drcbearm64.Execute(cache, entry, &state); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	fmt.Printf("buffer after execution: %#x\n", binary.LittleEndian.Uint64(buffer[:]))
	return nil
}

// codeLength recovers how many bytes Generate committed for entry, since
// the cache only exposes the bump pointer, not individual block lengths.
func codeLength(cache *codecache.Cache, entry uintptr) int {
	return cache.NextOffset() - int(entry-cache.BaseAddr())
}
