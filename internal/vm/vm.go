// Package vm executes compiled Zero programs on a stack machine.
//
// One VM instance runs one program to completion, single-threaded and
// synchronous. Runtime errors are fatal and final: the machine reports a
// descriptive error and stops, it never guesses its way past undefined
// state. Concurrent execution is fine as long as every VM owns its own
// program, stack and frames.
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zerolang/zero/internal/bytecode"
	"github.com/zerolang/zero/internal/config"
)

// Fatal error classes. Tests match on these with errors.Is; user-facing
// messages add position context on top.
var (
	ErrStackUnderflow = errors.New("operand stack underflow")
	ErrStackOverflow  = errors.New("operand stack overflow")
	ErrFrameOverflow  = errors.New("call depth limit exceeded")
	ErrInvalidOpcode  = errors.New("invalid opcode")
	ErrInvalidJump    = errors.New("jump target out of range")
	ErrIndexRange     = errors.New("index out of range")
	ErrTruncatedCode  = errors.New("truncated instruction stream")
)

// Sizing limits.
const (
	InitialStackSize = 256
	MaxStackSize     = 1 << 20 // 1M values
	MaxFrameCount    = 4096
)

// Frame is one active function invocation.
type Frame struct {
	chunk     *bytecode.Chunk
	chunkIdx  int
	ip        int // instruction pointer within chunk.Code
	localBase int // where this frame's slots start in the locals arena
	stackBase int // operand stack height at frame entry
}

// VM is the virtual machine that executes one compiled program.
type VM struct {
	program *bytecode.Program

	// Constant pools pre-converted to runtime values, one per chunk.
	constants [][]Value

	stack []Value
	sp    int // points to next free slot

	// Local slots for all live frames, flat arena indexed by frame base.
	locals []Value

	frames     []Frame
	frameCount int
	frame      *Frame // current (topmost) frame

	builtins []Builtin
	out      io.Writer
}

// New creates a VM for program. The program must already satisfy the
// structural invariants (the loader and the compiler both validate).
func New(program *bytecode.Program) *VM {
	vm := &VM{
		program: program,
		stack:   make([]Value, InitialStackSize),
		frames:  make([]Frame, 0, 64),
		out:     os.Stdout,
	}
	vm.constants = make([][]Value, len(program.Chunks))
	for i, chunk := range program.Chunks {
		pool := make([]Value, len(chunk.Constants))
		for j, c := range chunk.Constants {
			pool[j] = FromConstant(c)
		}
		vm.constants[i] = pool
	}
	vm.builtins = DefaultBuiltins(vm.out)
	return vm
}

// SetOutput redirects builtin output (defaults to os.Stdout). It rebuilds
// the default builtin table; call it before SetBuiltins if both are used.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
	vm.builtins = DefaultBuiltins(w)
}

// SetBuiltins installs a custom builtin implementation table.
func (vm *VM) SetBuiltins(table []Builtin) {
	vm.builtins = table
}

// Run executes the program from main and returns its result value.
// A returned error means fatal abort; nothing is retried.
func (vm *VM) Run() (Value, error) {
	mainIdx, ok := vm.program.FunctionIndex[config.EntryFuncName]
	if !ok {
		return Value{}, fmt.Errorf("program has no %s function", config.EntryFuncName)
	}
	if err := vm.pushFrame(mainIdx, 0); err != nil {
		return Value{}, err
	}

	for {
		result, done, err := vm.step()
		if err != nil {
			return Value{}, vm.positionError(err)
		}
		if done {
			return result, nil
		}
	}
}

// step executes one instruction. done is true when the outermost frame
// returned; result then holds main's return value.
func (vm *VM) step() (result Value, done bool, err error) {
	frame := vm.frame
	chunk := frame.chunk

	if frame.ip >= len(chunk.Code) {
		// The compiler always terminates a chunk with OP_RET, so running
		// off the end means foreign or corrupted bytecode.
		return Value{}, false, fmt.Errorf("%w: instruction pointer %d beyond %d bytes", ErrTruncatedCode, frame.ip, len(chunk.Code))
	}

	op := bytecode.Opcode(chunk.Code[frame.ip])
	width := op.OperandWidth()
	if width < 0 {
		return Value{}, false, fmt.Errorf("%w: 0x%02X at offset %d", ErrInvalidOpcode, chunk.Code[frame.ip], frame.ip)
	}
	if frame.ip+1+width > len(chunk.Code) {
		return Value{}, false, fmt.Errorf("%w: %s at offset %d is missing operands", ErrTruncatedCode, op, frame.ip)
	}
	operandAt := frame.ip + 1
	frame.ip += 1 + width

	switch op {
	case bytecode.OP_CONST:
		idx := chunk.ReadU16(operandAt)
		pool := vm.constants[frame.chunkIdx]
		if idx >= len(pool) {
			return Value{}, false, fmt.Errorf("%w: constant %d of %d", ErrIndexRange, idx, len(pool))
		}
		if err := vm.push(pool[idx]); err != nil {
			return Value{}, false, err
		}

	case bytecode.OP_LOAD:
		slot := int(chunk.Code[operandAt])
		if slot >= chunk.Locals {
			return Value{}, false, fmt.Errorf("%w: local slot %d of %d", ErrIndexRange, slot, chunk.Locals)
		}
		if err := vm.push(vm.locals[frame.localBase+slot]); err != nil {
			return Value{}, false, err
		}

	case bytecode.OP_STORE:
		slot := int(chunk.Code[operandAt])
		if slot >= chunk.Locals {
			return Value{}, false, fmt.Errorf("%w: local slot %d of %d", ErrIndexRange, slot, chunk.Locals)
		}
		value, err := vm.pop()
		if err != nil {
			return Value{}, false, err
		}
		vm.locals[frame.localBase+slot] = value

	case bytecode.OP_POP:
		if _, err := vm.pop(); err != nil {
			return Value{}, false, err
		}

	case bytecode.OP_ADD_INT, bytecode.OP_SUB_INT, bytecode.OP_MUL_INT, bytecode.OP_MOD_INT:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		var res int64
		switch op {
		case bytecode.OP_ADD_INT:
			// Integer arithmetic wraps on overflow (two's complement).
			res = a.AsInt() + b.AsInt()
		case bytecode.OP_SUB_INT:
			res = a.AsInt() - b.AsInt()
		case bytecode.OP_MUL_INT:
			res = a.AsInt() * b.AsInt()
		case bytecode.OP_MOD_INT:
			if b.AsInt() == 0 {
				return Value{}, false, errors.New("integer modulo by zero")
			}
			res = a.AsInt() % b.AsInt()
		}
		vm.pushFast(IntVal(res))

	case bytecode.OP_ADD_STR:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(StrVal(a.AsStr() + b.AsStr()))

	case bytecode.OP_CMP_EQ_INT:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsInt() == b.AsInt()))

	case bytecode.OP_CMP_NE_INT:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsInt() != b.AsInt()))

	case bytecode.OP_CMP_LT_INT:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsInt() < b.AsInt()))

	case bytecode.OP_CMP_GT_INT:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsInt() > b.AsInt()))

	case bytecode.OP_CMP_LE_INT:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsInt() <= b.AsInt()))

	case bytecode.OP_CMP_GE_INT:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsInt() >= b.AsInt()))

	case bytecode.OP_CMP_EQ_BOOL:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsBool() == b.AsBool()))

	case bytecode.OP_CMP_NE_BOOL:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsBool() != b.AsBool()))

	case bytecode.OP_CMP_EQ_STR:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsStr() == b.AsStr()))

	case bytecode.OP_CMP_NE_STR:
		b, a, err := vm.popPair()
		if err != nil {
			return Value{}, false, err
		}
		vm.pushFast(BoolVal(a.AsStr() != b.AsStr()))

	case bytecode.OP_JUMP:
		target := chunk.ReadU16(operandAt)
		if target >= len(chunk.Code) {
			return Value{}, false, fmt.Errorf("%w: %d in a %d-byte chunk", ErrInvalidJump, target, len(chunk.Code))
		}
		frame.ip = target

	case bytecode.OP_JUMP_IF_FALSE:
		target := chunk.ReadU16(operandAt)
		if target >= len(chunk.Code) {
			return Value{}, false, fmt.Errorf("%w: %d in a %d-byte chunk", ErrInvalidJump, target, len(chunk.Code))
		}
		cond, err := vm.pop()
		if err != nil {
			return Value{}, false, err
		}
		if !cond.AsBool() {
			frame.ip = target
		}

	case bytecode.OP_CALL:
		funcIdx := chunk.ReadU16(operandAt)
		argc := int(chunk.Code[operandAt+2])
		if funcIdx >= len(vm.program.Chunks) {
			return Value{}, false, fmt.Errorf("%w: function %d of %d", ErrIndexRange, funcIdx, len(vm.program.Chunks))
		}
		if err := vm.pushFrame(funcIdx, argc); err != nil {
			return Value{}, false, err
		}

	case bytecode.OP_CALL_BUILTIN:
		builtinIdx := int(chunk.Code[operandAt])
		argc := int(chunk.Code[operandAt+1])
		if builtinIdx >= len(vm.builtins) {
			return Value{}, false, fmt.Errorf("%w: builtin %d of %d", ErrIndexRange, builtinIdx, len(vm.builtins))
		}
		builtin := vm.builtins[builtinIdx]
		if argc != builtin.Arity {
			return Value{}, false, fmt.Errorf("builtin %s called with %d args, wants %d", builtin.Name, argc, builtin.Arity)
		}
		if vm.sp < argc {
			return Value{}, false, fmt.Errorf("%w: builtin %s wants %d args, stack has %d", ErrStackUnderflow, builtin.Name, argc, vm.sp)
		}
		args := make([]Value, argc)
		copy(args, vm.stack[vm.sp-argc:vm.sp])
		vm.sp -= argc
		result, err := builtin.Fn(args)
		if err != nil {
			return Value{}, false, err
		}
		if err := vm.push(result); err != nil {
			return Value{}, false, err
		}

	case bytecode.OP_RET:
		// The return value must come from this frame's own portion of the
		// stack; crafted code with a bare RET would otherwise pop into the
		// caller's values.
		if vm.sp <= frame.stackBase {
			return Value{}, false, fmt.Errorf("%w: return with empty frame stack", ErrStackUnderflow)
		}
		result, err := vm.pop()
		if err != nil {
			return Value{}, false, err
		}
		// Discard the whole callee frame: its locals and anything it left
		// on the operand stack above its base.
		vm.sp = frame.stackBase
		vm.locals = vm.locals[:frame.localBase]
		vm.frameCount--
		if vm.frameCount == 0 {
			return result, true, nil
		}
		vm.frame = &vm.frames[vm.frameCount-1]
		if err := vm.push(result); err != nil {
			return Value{}, false, err
		}
	}

	return Value{}, false, nil
}

// pushFrame pops argc arguments into a new frame for chunk funcIdx,
// preserving push order in slots 0..argc-1 and zeroing remaining slots.
func (vm *VM) pushFrame(funcIdx, argc int) error {
	if vm.frameCount >= MaxFrameCount {
		return fmt.Errorf("%w (%d frames)", ErrFrameOverflow, vm.frameCount)
	}
	chunk := vm.program.Chunks[funcIdx]
	if argc != chunk.Arity {
		return fmt.Errorf("function %q called with %d args, wants %d",
			vm.program.FunctionName(funcIdx), argc, chunk.Arity)
	}
	if vm.sp < argc {
		return fmt.Errorf("%w: call wants %d args, stack has %d", ErrStackUnderflow, argc, vm.sp)
	}
	if chunk.Arity > chunk.Locals {
		return fmt.Errorf("chunk %d declares %d locals for arity %d", funcIdx, chunk.Locals, chunk.Arity)
	}

	localBase := len(vm.locals)
	vm.locals = append(vm.locals, vm.stack[vm.sp-argc:vm.sp]...)
	for i := argc; i < chunk.Locals; i++ {
		vm.locals = append(vm.locals, Value{})
	}
	vm.sp -= argc

	vm.frames = append(vm.frames[:vm.frameCount], Frame{
		chunk:     chunk,
		chunkIdx:  funcIdx,
		ip:        0,
		localBase: localBase,
		stackBase: vm.sp,
	})
	vm.frameCount++
	vm.frame = &vm.frames[vm.frameCount-1]
	return nil
}

// --- stack operations ---

func (vm *VM) push(v Value) error {
	if vm.sp >= len(vm.stack) {
		if vm.sp >= MaxStackSize {
			return fmt.Errorf("%w (%d values)", ErrStackOverflow, vm.sp)
		}
		grown := make([]Value, len(vm.stack)*2)
		copy(grown, vm.stack[:vm.sp])
		vm.stack = grown
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

// pushFast pushes a value into space freed by pops in the same instruction.
func (vm *VM) pushFast(v Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() (Value, error) {
	if vm.sp == 0 {
		return Value{}, ErrStackUnderflow
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

// popPair pops the right then the left operand of a binary instruction.
func (vm *VM) popPair() (b, a Value, err error) {
	if vm.sp < 2 {
		return Value{}, Value{}, fmt.Errorf("%w: binary op needs 2 values, stack has %d", ErrStackUnderflow, vm.sp)
	}
	vm.sp -= 2
	return vm.stack[vm.sp+1], vm.stack[vm.sp], nil
}

// positionError decorates a fatal error with the current function and the
// source line of the failing instruction, when known.
func (vm *VM) positionError(err error) error {
	if vm.frame == nil {
		return err
	}
	name := vm.program.FunctionName(vm.frame.chunkIdx)
	if name == "" {
		name = fmt.Sprintf("chunk %d", vm.frame.chunkIdx)
	}
	if line := vm.frame.chunk.Line(vm.frame.ip - 1); line > 0 {
		return fmt.Errorf("runtime error in %s (line %d): %w", name, line, err)
	}
	return fmt.Errorf("runtime error in %s: %w", name, err)
}
