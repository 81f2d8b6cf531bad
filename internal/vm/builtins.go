package vm

import (
	"fmt"
	"io"
	"time"

	"github.com/zerolang/zero/internal/bytecode"
)

// BuiltinFunc is the host-side implementation of one builtin. Args arrive
// in push order. Every builtin returns exactly one value so each
// OP_CALL_BUILTIN site has the same stack effect; builtins with nothing
// meaningful to say return int 0.
type BuiltinFunc func(args []Value) (Value, error)

// Builtin pairs a signature with its implementation. The table index must
// line up with the compile-time signature table in the bytecode package.
type Builtin struct {
	Name  string
	Arity int
	Fn    BuiltinFunc
}

// DefaultBuiltins builds the standard implementation table writing to out.
// The embedder may install a different table with SetBuiltins (tests do,
// to record invocations or fix the clock).
func DefaultBuiltins(out io.Writer) []Builtin {
	table := make([]Builtin, len(bytecode.Builtins))
	for i, sig := range bytecode.Builtins {
		table[i] = Builtin{Name: sig.Name, Arity: sig.Arity}
	}

	table[0].Fn = func(args []Value) (Value, error) {
		if _, err := fmt.Fprintln(out, args[0].String()); err != nil {
			return Value{}, fmt.Errorf("print: %w", err)
		}
		return IntVal(0), nil
	}
	table[1].Fn = func(args []Value) (Value, error) {
		return IntVal(time.Now().Unix()), nil
	}
	return table
}
