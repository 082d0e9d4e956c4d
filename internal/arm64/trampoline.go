//go:build arm64

// Completion: 100% - Module complete
package arm64

// CallEntry transfers control to native code at entry, passing statePtr as
// the sole argument in X0 per AAPCS64 (the entry trampoline documented in
// runtime.go expects exactly this calling convention: MachineState* in x0,
// a stp fp,lr prologue, and a plain RET on exit). Implemented in
// trampoline_arm64.s; grounded on the same raw-function-pointer-call
// pattern wazero's JIT engine uses to enter its own compiled code.
//
//go:noescape
func CallEntry(entry uintptr, statePtr uintptr)
