package config

// SourceFileExt is the extension for Zero source files.
const SourceFileExt = ".zr"

// CompiledFileExt is the extension for compiled bytecode files.
const CompiledFileExt = ".zrc"

// CacheDirName is the directory (next to the source file) where compiled
// bytecode is cached.
const CacheDirName = ".zr-cache"

// MaxProgramFileSize bounds how large a bytecode file may be before the
// loader refuses to decode it. Untrusted input must never make us allocate
// unbounded memory.
const MaxProgramFileSize = 16 << 20 // 16 MiB

// Built-in function names
const (
	PrintFuncName = "print"
	NowFuncName   = "now"
)

// Type names used by the front end and the compiler
const (
	IntTypeName    = "int"
	BoolTypeName   = "bool"
	StringTypeName = "str"
)

// EntryFuncName is the function every program must define.
const EntryFuncName = "main"
