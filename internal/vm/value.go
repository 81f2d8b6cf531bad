package vm

import (
	"math"
	"strconv"

	"github.com/zerolang/zero/internal/bytecode"
)

// ValueKind identifies the type of value stored in the Value struct.
type ValueKind uint8

const (
	ValInt ValueKind = iota
	ValFloat
	ValBool
	ValStr
)

// Value is a stack-allocated tagged union. Small primitives live in Data
// (int64 bits, float64 bits, bool 0/1); strings keep their own field. The
// tag exists for host-boundary formatting only: the interpreter loop itself
// never branches on it, because opcodes are already specialized per type.
type Value struct {
	Kind ValueKind
	Data uint64
	Str  string
}

// Constructors

func IntVal(v int64) Value {
	return Value{Kind: ValInt, Data: uint64(v)}
}

func FloatVal(v float64) Value {
	return Value{Kind: ValFloat, Data: math.Float64bits(v)}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Kind: ValBool, Data: data}
}

func StrVal(v string) Value {
	return Value{Kind: ValStr, Str: v}
}

// Accessors

func (v Value) AsInt() int64 {
	return int64(v.Data)
}

func (v Value) AsFloat() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data == 1
}

func (v Value) AsStr() string {
	return v.Str
}

// FromConstant converts a constant-pool entry to its runtime representation.
func FromConstant(c bytecode.Value) Value {
	switch c.Kind {
	case bytecode.KindInt:
		return IntVal(c.Int)
	case bytecode.KindFloat:
		return FloatVal(c.Float)
	case bytecode.KindBool:
		return BoolVal(c.Bool)
	default:
		return StrVal(c.Str)
	}
}

// String formats the value for the print builtin: ints in decimal, bools as
// true/false, strings raw, floats in shortest form.
func (v Value) String() string {
	switch v.Kind {
	case ValInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case ValFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case ValBool:
		return strconv.FormatBool(v.AsBool())
	default:
		return v.Str
	}
}
