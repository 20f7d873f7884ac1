package wasm

// Binary format header.
const (
	Magic   uint32 = 0x6D736100 // "\0asm"
	Version uint32 = 0x01
)

// Section IDs, in the order they must appear.
const (
	SectionType     byte = 1
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionCode     byte = 10
)

// Export kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
)

// ValType is a value type encoding.
type ValType byte

const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
)

// FuncTypeByte introduces a function signature in the type section.
const FuncTypeByte byte = 0x60

// Opcodes used by generated code.
const (
	OpEnd    byte = 0x0B
	OpSelect byte = 0x1B

	OpLocalGet byte = 0x20
	OpLocalSet byte = 0x21

	OpI64Load    byte = 0x29
	OpI64Load8S  byte = 0x30
	OpI64Load16S byte = 0x32
	OpI64Load32S byte = 0x34

	OpI64Store   byte = 0x37
	OpI64Store8  byte = 0x3C
	OpI64Store16 byte = 0x3D
	OpI64Store32 byte = 0x3E

	OpI64Const byte = 0x42

	OpI64Eqz byte = 0x50
	OpI64Eq  byte = 0x51
	OpI64Ne  byte = 0x52
	OpI64LtS byte = 0x53
	OpI64LtU byte = 0x54
	OpI64GtS byte = 0x55
	OpI64GtU byte = 0x56
	OpI64LeS byte = 0x57
	OpI64LeU byte = 0x58
	OpI64GeS byte = 0x59
	OpI64GeU byte = 0x5A

	OpI64Add  byte = 0x7C
	OpI64Sub  byte = 0x7D
	OpI64Mul  byte = 0x7E
	OpI64DivS byte = 0x7F
	OpI64DivU byte = 0x80
	OpI64And  byte = 0x83
	OpI64Shl  byte = 0x86
	OpI64ShrS byte = 0x87

	OpI32WrapI64    byte = 0xA7
	OpI64ExtendI32U byte = 0xAD

	OpPrefixMisc byte = 0xFC
)

// MiscMemoryFill is the 0xFC sub-opcode of memory.fill.
const MiscMemoryFill uint32 = 0x0B

// PageSize is the size of a linear memory page in bytes.
const PageSize = 1 << 16
