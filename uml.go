// Completion: 100% - UML instruction model complete
package drcbearm64

import "fmt"

// Opcode identifies a UML instruction. The front end that actually simplifies
// and schedules UML instructions is out of scope here; this enum only needs
// to be wide enough to drive the per-opcode lowerers in this package.
type Opcode int

const (
	OpHandle Opcode = iota
	OpHash
	OpLabel
	OpComment
	OpMapvar
	OpNop
	OpBreak
	OpDebug
	OpExit
	OpHashjmp
	OpJmp
	OpExh
	OpCallh
	OpRet
	OpCallc
	OpRecover

	OpSetfmod
	OpGetfmod
	OpGetexp
	OpGetflgs
	OpSetflgs
	OpSave
	OpRestore

	OpLoad
	OpLoads
	OpStore
	OpRead
	OpReadm
	OpWrite
	OpWritem
	OpFload
	OpFstore
	OpFread
	OpFwrite

	OpMov
	OpSext
	OpRoland
	OpRolins

	OpAdd
	OpAddc
	OpSub
	OpSubb
	OpCmp
	OpMulu
	OpMululw
	OpMuls
	OpMulslw
	OpDivu
	OpDivs

	OpAnd
	OpTest
	OpOr
	OpXor
	OpLzcnt
	OpTzcnt
	OpBswap

	OpShl
	OpShr
	OpSar
	OpRol
	OpRolc
	OpRor
	OpRorc

	OpFmov
	OpFadd
	OpFsub
	OpFmul
	OpFdiv
	OpFneg
	OpFabs
	OpFsqrt
	OpFrecip
	OpFrsqrt
	OpFcmp
	OpFcopyi
	OpIcopyf
	OpFtoint
	OpFfrint
	OpFfrflt
	OpFrnds
)

var opcodeNames = map[Opcode]string{
	OpHandle: "handle", OpHash: "hash", OpLabel: "label", OpComment: "comment",
	OpMapvar: "mapvar", OpNop: "nop", OpBreak: "break", OpDebug: "debug",
	OpExit: "exit", OpHashjmp: "hashjmp", OpJmp: "jmp", OpExh: "exh",
	OpCallh: "callh", OpRet: "ret", OpCallc: "callc", OpRecover: "recover",
	OpSetfmod: "setfmod", OpGetfmod: "getfmod", OpGetexp: "getexp",
	OpGetflgs: "getflgs", OpSetflgs: "setflgs", OpSave: "save", OpRestore: "restore",
	OpLoad: "load", OpLoads: "loads", OpStore: "store", OpRead: "read",
	OpReadm: "readm", OpWrite: "write", OpWritem: "writem", OpFload: "fload",
	OpFstore: "fstore", OpFread: "fread", OpFwrite: "fwrite",
	OpMov: "mov", OpSext: "sext", OpRoland: "roland", OpRolins: "rolins",
	OpAdd: "add", OpAddc: "addc", OpSub: "sub", OpSubb: "subb", OpCmp: "cmp",
	OpMulu: "mulu", OpMululw: "mululw", OpMuls: "muls", OpMulslw: "mulslw",
	OpDivu: "divu", OpDivs: "divs",
	OpAnd: "and", OpTest: "test", OpOr: "or", OpXor: "xor",
	OpLzcnt: "lzcnt", OpTzcnt: "tzcnt", OpBswap: "bswap",
	OpShl: "shl", OpShr: "shr", OpSar: "sar", OpRol: "rol", OpRolc: "rolc",
	OpRor: "ror", OpRorc: "rorc",
	OpFmov: "fmov", OpFadd: "fadd", OpFsub: "fsub", OpFmul: "fmul", OpFdiv: "fdiv",
	OpFneg: "fneg", OpFabs: "fabs", OpFsqrt: "fsqrt", OpFrecip: "frecip",
	OpFrsqrt: "frsqrt", OpFcmp: "fcmp", OpFcopyi: "fcopyi", OpIcopyf: "icopyf",
	OpFtoint: "ftoint", OpFfrint: "ffrint", OpFfrflt: "ffrflt", OpFrnds: "frnds",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("opcode(%d)", int(o))
}

// Condition is a UML condition code. ALWAYS carries no test; the remaining
// values pair up (Z/NZ, S/NS, ...) the way AArch64 NZCV condition codes do,
// except for U/NU which have no native NZCV representation.
type Condition int

const (
	CondAlways Condition = iota
	CondZ
	CondNZ
	CondS
	CondNS
	CondC
	CondNC
	CondV
	CondNV
	CondU
	CondNU
	CondA
	CondBE
	CondG
	CondLE
	CondL
	CondGE
)

// FlagBit indexes a bit of the UML flags byte (C=0, V=1, Z=2, S=3, U=4).
type FlagBit uint8

const (
	FlagC FlagBit = 1 << 0
	FlagV FlagBit = 1 << 1
	FlagZ FlagBit = 1 << 2
	FlagS FlagBit = 1 << 3
	FlagU FlagBit = 1 << 4
)

// Size is the width in bytes of an integer or float operand: 4 or 8.
type Size int

const (
	Size4 Size = 4
	Size8 Size = 8
)

// ParamKind distinguishes the four UML parameter forms.
type ParamKind int

const (
	ParamImmediate ParamKind = iota
	ParamMemory
	ParamIntRegister
	ParamFloatRegister
)

// kind bitmask used when classifying parameters (spec section 4.2).
const (
	PTypeM  = 1 << ParamMemory
	PTypeI  = 1 << ParamImmediate
	PTypeR  = 1 << ParamIntRegister
	PTypeF  = 1 << ParamFloatRegister
	PTypeMR = PTypeM | PTypeR
	PTypeMRI = PTypeM | PTypeR | PTypeI
	PTypeMF = PTypeM | PTypeF
)

// Param is one UML instruction operand.
type Param struct {
	Kind  ParamKind
	Imm   uint64  // valid when Kind == ParamImmediate
	Mem   uintptr // valid when Kind == ParamMemory: raw pointer to a machine word
	Index int     // valid when Kind == ParamIntRegister/ParamFloatRegister: 0..7
}

func ImmParam(v uint64) Param             { return Param{Kind: ParamImmediate, Imm: v} }
func MemParam(p uintptr) Param            { return Param{Kind: ParamMemory, Mem: p} }
func IntRegParam(i int) Param             { return Param{Kind: ParamIntRegister, Index: i} }
func FloatRegParam(i int) Param           { return Param{Kind: ParamFloatRegister, Index: i} }

// Instruction is one UML opcode with its operands, condition and flag mask.
type Instruction struct {
	Op        Opcode
	Size      Size
	Condition Condition
	FlagMask  FlagBit
	Param     [4]Param
	NumParams int
	Comment   string // present only for OpComment
}

func (i *Instruction) P(n int) Param {
	if n >= i.NumParams {
		return Param{}
	}
	return i.Param[n]
}
