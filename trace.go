// Completion: 100% - Module complete
package drcbearm64

import (
	"fmt"
	"os"
)

// VerboseMode mirrors the teacher's package-level debug switch: when set,
// every opcode lowerer echoes the UML mnemonic it is about to emit to
// stderr before encoding it. cmd/drcbedump sets it from its --verbose flag
// or drcbeconfig; it is exported so tests can flip it directly, the same
// way the teacher's own tests do.
var VerboseMode = false

func trace(format string, args ...any) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func traceln(format string, args ...any) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
