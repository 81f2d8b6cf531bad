package bytecode

import "github.com/zerolang/zero/internal/config"

// BuiltinSig is the compile-time signature of a host builtin. The runtime
// implementation table lives with the VM; this table only resolves names to
// indices and checks arity and result types during compilation.
type BuiltinSig struct {
	Name       string
	Arity      int
	ReturnType string
}

// Builtins is the fixed builtin signature table. An entry's position is its
// OP_CALL_BUILTIN index, so the order is part of the wire format.
var Builtins = []BuiltinSig{
	{Name: config.PrintFuncName, Arity: 1, ReturnType: config.IntTypeName},
	{Name: config.NowFuncName, Arity: 0, ReturnType: config.IntTypeName},
}

// BuiltinIndex resolves a builtin name to its table index.
func BuiltinIndex(name string) (int, bool) {
	for i, b := range Builtins {
		if b.Name == name {
			return i, true
		}
	}
	return 0, false
}

// IsBuiltin reports whether name is a registered builtin.
func IsBuiltin(name string) bool {
	_, ok := BuiltinIndex(name)
	return ok
}
