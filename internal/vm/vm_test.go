package vm

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/zerolang/zero/internal/bytecode"
	"github.com/zerolang/zero/internal/compiler"
	"github.com/zerolang/zero/internal/lexer"
	"github.com/zerolang/zero/internal/parser"
	"github.com/zerolang/zero/internal/semantic"
)

func compileSource(t *testing.T, input string) *bytecode.Program {
	t.Helper()
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		t.Fatalf("tokenize error: %s", err)
	}
	tree, err := parser.Parse(tokens)
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}
	if err := semantic.Analyze(tree); err != nil {
		t.Fatalf("semantic error: %s", err)
	}
	program, err := compiler.Compile(tree)
	if err != nil {
		t.Fatalf("compile error: %s", err)
	}
	return program
}

// runSource executes a program and returns main's result and its output.
func runSource(t *testing.T, input string) (Value, string) {
	t.Helper()
	program := compileSource(t, input)

	var out bytes.Buffer
	machine := New(program)
	machine.SetOutput(&out)
	result, err := machine.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	return result, out.String()
}

func runError(t *testing.T, program *bytecode.Program) error {
	t.Helper()
	machine := New(program)
	machine.SetOutput(&bytes.Buffer{})
	_, err := machine.Run()
	if err == nil {
		t.Fatal("expected runtime error")
	}
	return err
}

func testIntResult(t *testing.T, v Value, expected int64) {
	t.Helper()
	if v.Kind != ValInt {
		t.Fatalf("result is not int. got kind=%d (%s)", v.Kind, v)
	}
	if v.AsInt() != expected {
		t.Errorf("result wrong. got=%d, want=%d", v.AsInt(), expected)
	}
}

// Compiling and running a main that computes 1 + 2 returns 3.
func TestRunSimpleExpression(t *testing.T) {
	result, _ := runSource(t, "fn main() { return 1 + 2 }")
	testIntResult(t, result, 3)
}

// A user function called from main produces the printed sum.
func TestUserFunctionCall(t *testing.T) {
	_, out := runSource(t, `
fn add(a: int, b: int): int {
  return a + b
}

fn main() {
  print(add(2, 3))
}
`)
	if out != "5\n" {
		t.Errorf("output wrong. got=%q, want=%q", out, "5\n")
	}
}

// A counting loop prints 0, 1, 2 in order and terminates.
func TestForLoop(t *testing.T) {
	_, out := runSource(t, `
fn main() {
  i: int = 0
  for (i < 3) {
    print(i)
    i += 1
  }
}
`)
	if out != "0\n1\n2\n" {
		t.Errorf("output wrong. got=%q, want=%q", out, "0\n1\n2\n")
	}
}

// break exits only the inner loop; the outer loop keeps iterating.
func TestNestedLoopBreak(t *testing.T) {
	_, out := runSource(t, `
fn main() {
  i: int = 0
  for (i < 3) {
    j: int = 0
    for (j < 10) {
      if (j == 1) {
        break
      }
      print(i * 10 + j)
      j += 1
    }
    i += 1
  }
}
`)
	if out != "0\n10\n20\n" {
		t.Errorf("output wrong. got=%q, want=%q", out, "0\n10\n20\n")
	}
}

func TestContinue(t *testing.T) {
	_, out := runSource(t, `
fn main() {
  i: int = 0
  for (i < 5) {
    i += 1
    if (i % 2 == 0) {
      continue
    }
    print(i)
  }
}
`)
	if out != "1\n3\n5\n" {
		t.Errorf("output wrong. got=%q, want=%q", out, "1\n3\n5\n")
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"7 - 3", 4},
		{"6 * 7", 42},
		{"17 % 5", 2},
		{"-5 + 3", -2},
		{"2 - -3", 5},
		{"(1 + 2) * (3 + 4)", 21},
	}
	for _, tt := range tests {
		result, _ := runSource(t, "fn main() { return "+tt.expr+" }")
		testIntResult(t, result, tt.want)
	}
}

// Integer arithmetic wraps on overflow.
func TestOverflowWraps(t *testing.T) {
	program := compileSource(t, `
fn main() {
  big: int = 9223372036854775807
  return big + 1
}
`)
	machine := New(program)
	result, err := machine.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	testIntResult(t, result, math.MinInt64)
}

func TestModuloByZero(t *testing.T) {
	program := compileSource(t, "fn main() { return 1 % 0 }")
	err := runError(t, program)
	if !strings.Contains(err.Error(), "modulo by zero") {
		t.Errorf("error wrong. got=%q", err.Error())
	}
}

func TestStringOperations(t *testing.T) {
	_, out := runSource(t, `
fn greet(name: str): str {
  return "hello, " + name
}

fn main() {
  print(greet("world"))
  if ("a" + "b" == "ab") {
    print("eq")
  }
  if ("a" != "b") {
    print("ne")
  }
}
`)
	if out != "hello, world\neq\nne\n" {
		t.Errorf("output wrong. got=%q", out)
	}
}

func TestBoolComparisons(t *testing.T) {
	_, out := runSource(t, `
fn main() {
  a: bool = 1 < 2
  b: bool = 2 < 1
  if (a == true) { print(1) }
  if (a != b) { print(2) }
  if (b == false) { print(3) }
}
`)
	if out != "1\n2\n3\n" {
		t.Errorf("output wrong. got=%q", out)
	}
}

func TestRecursion(t *testing.T) {
	result, _ := runSource(t, `
fn fib(n: int): int {
  if (n < 2) {
    return n
  }
  return fib(n - 1) + fib(n - 2)
}

fn main() {
  return fib(15)
}
`)
	testIntResult(t, result, 610)
}

func TestDeepRecursionHitsFrameLimit(t *testing.T) {
	program := compileSource(t, `
fn forever(n: int): int {
  return forever(n + 1)
}

fn main() {
  return forever(0)
}
`)
	err := runError(t, program)
	if !errors.Is(err, ErrFrameOverflow) {
		t.Fatalf("got %v, want ErrFrameOverflow", err)
	}
}

// print returns a placeholder int so call results compose uniformly.
func TestPrintReturnsZero(t *testing.T) {
	result, out := runSource(t, `
fn main() {
  return print(42)
}
`)
	testIntResult(t, result, 0)
	if out != "42\n" {
		t.Errorf("output wrong. got=%q", out)
	}
}

func TestPrintFormatsAllTypes(t *testing.T) {
	_, out := runSource(t, `
fn main() {
  print(42)
  print(true)
  print(false)
  print("text")
}
`)
	if out != "42\ntrue\nfalse\ntext\n" {
		t.Errorf("output wrong. got=%q", out)
	}
}

func TestNowReturnsPlausibleTimestamp(t *testing.T) {
	result, _ := runSource(t, "fn main() { return now() }")
	// 2020-01-01 as a loose lower bound.
	if result.AsInt() < 1577836800 {
		t.Errorf("now() implausible. got=%d", result.AsInt())
	}
}

func TestImplicitReturn(t *testing.T) {
	result, _ := runSource(t, `
fn sideEffect() { print(1) }

fn main() {
  sideEffect()
  x: int = sideEffect()
  return x
}
`)
	testIntResult(t, result, 0)
}

func TestVariableRedeclaration(t *testing.T) {
	_, out := runSource(t, `
fn main() {
  x: int = 1
  x: str = "two"
  print(x)
}
`)
	if out != "two\n" {
		t.Errorf("output wrong. got=%q", out)
	}
}

// The same program always yields the same output and result.
func TestDeterminism(t *testing.T) {
	const src = `
fn collatz(n: int): int {
  steps: int = 0
  for (n != 1) {
    if (n % 2 == 0) {
      n = n - n % 2
      n = n * 1
      n = half(n)
    } else {
      n = 3 * n + 1
    }
    steps += 1
    print(n)
  }
  return steps
}

fn half(n: int): int {
  r: int = 0
  for (r + r + 1 < n) {
    r += 1
  }
  return r
}

fn main() {
  return collatz(27)
}
`
	var firstOut string
	var firstResult int64
	for i := 0; i < 3; i++ {
		result, out := runSource(t, src)
		if i == 0 {
			firstOut, firstResult = out, result.AsInt()
			continue
		}
		if out != firstOut || result.AsInt() != firstResult {
			t.Fatalf("run %d diverged", i)
		}
	}
}

// --- fatal error behavior on crafted bytecode ---

// craft builds a structurally valid single-function program from raw code.
func craft(code []byte, constants ...bytecode.Value) *bytecode.Program {
	chunk := &bytecode.Chunk{Code: code, Constants: constants}
	return &bytecode.Program{
		Chunks:        []*bytecode.Chunk{chunk},
		FunctionIndex: map[string]int{"main": 0},
	}
}

// An out-of-range CALL function index aborts with an explicit index error.
func TestCallIndexOutOfRange(t *testing.T) {
	program := craft([]byte{
		byte(bytecode.OP_CALL), 0x00, 0x09, 0, // function 9 of 1
		byte(bytecode.OP_RET),
	})
	err := runError(t, program)
	if !errors.Is(err, ErrIndexRange) {
		t.Fatalf("got %v, want ErrIndexRange", err)
	}
}

func TestConstantIndexOutOfRange(t *testing.T) {
	program := craft([]byte{
		byte(bytecode.OP_CONST), 0x00, 0x05,
		byte(bytecode.OP_RET),
	})
	err := runError(t, program)
	if !errors.Is(err, ErrIndexRange) {
		t.Fatalf("got %v, want ErrIndexRange", err)
	}
}

func TestSlotIndexOutOfRange(t *testing.T) {
	program := craft([]byte{
		byte(bytecode.OP_LOAD), 7,
		byte(bytecode.OP_RET),
	}, bytecode.IntValue(0))
	err := runError(t, program)
	if !errors.Is(err, ErrIndexRange) {
		t.Fatalf("got %v, want ErrIndexRange", err)
	}
}

func TestBuiltinIndexOutOfRange(t *testing.T) {
	program := craft([]byte{
		byte(bytecode.OP_CONST), 0x00, 0x00,
		byte(bytecode.OP_CALL_BUILTIN), 99, 1,
		byte(bytecode.OP_RET),
	}, bytecode.IntValue(1))
	err := runError(t, program)
	if !errors.Is(err, ErrIndexRange) {
		t.Fatalf("got %v, want ErrIndexRange", err)
	}
}

func TestInvalidOpcode(t *testing.T) {
	program := craft([]byte{200})
	err := runError(t, program)
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("got %v, want ErrInvalidOpcode", err)
	}
}

func TestJumpOutOfRange(t *testing.T) {
	program := craft([]byte{
		byte(bytecode.OP_JUMP), 0xff, 0xff,
		byte(bytecode.OP_RET),
	})
	err := runError(t, program)
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("got %v, want ErrInvalidJump", err)
	}
}

func TestStackUnderflow(t *testing.T) {
	program := craft([]byte{byte(bytecode.OP_ADD_INT), byte(bytecode.OP_RET)})
	err := runError(t, program)
	if !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("got %v, want ErrStackUnderflow", err)
	}
}

// A callee returning without pushing anything must not pop into the
// caller's values, even when the stack is filled to its initial capacity
// at call time.
func TestReturnFromEmptyFrameStack(t *testing.T) {
	var mainCode []byte
	for i := 0; i < InitialStackSize; i++ {
		mainCode = append(mainCode, byte(bytecode.OP_CONST), 0x00, 0x00)
	}
	mainCode = append(mainCode,
		byte(bytecode.OP_CALL), 0x00, 0x01, 0,
		byte(bytecode.OP_RET),
	)
	program := &bytecode.Program{
		Chunks: []*bytecode.Chunk{
			{Code: mainCode, Constants: []bytecode.Value{bytecode.IntValue(1)}},
			{Code: []byte{byte(bytecode.OP_RET)}},
		},
		FunctionIndex: map[string]int{"main": 0, "f": 1},
	}
	err := runError(t, program)
	if !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("got %v, want ErrStackUnderflow", err)
	}
}

func TestRunningOffChunkEnd(t *testing.T) {
	program := craft([]byte{byte(bytecode.OP_POP)}) // POP underflows first
	if err := runError(t, program); err == nil {
		t.Fatal("expected error")
	}

	program = craft([]byte{
		byte(bytecode.OP_CONST), 0x00, 0x00,
		byte(bytecode.OP_POP),
	}, bytecode.IntValue(1))
	err := runError(t, program)
	if !errors.Is(err, ErrTruncatedCode) {
		t.Fatalf("got %v, want ErrTruncatedCode", err)
	}
}

func TestRuntimeErrorCarriesPosition(t *testing.T) {
	program := compileSource(t, `
fn boom(): int {
  return 1 % 0
}

fn main() {
  return boom()
}
`)
	err := runError(t, program)
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should name the function. got=%q", err.Error())
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error should carry the source line. got=%q", err.Error())
	}
}

func TestSetBuiltins(t *testing.T) {
	program := compileSource(t, "fn main() { return now() }")

	machine := New(program)
	table := DefaultBuiltins(&bytes.Buffer{})
	table[1].Fn = func(args []Value) (Value, error) {
		return IntVal(12345), nil
	}
	machine.SetBuiltins(table)

	result, err := machine.Run()
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	testIntResult(t, result, 12345)
}

// Generated straight-line programs: execution is deterministic and the
// operand stack is balanced through every instruction.
func TestGeneratedProgramsAreWellBehaved(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		src := generateProgram(rng)
		program := compileSource(t, src)

		var out1, out2 bytes.Buffer
		m1 := New(program)
		m1.SetOutput(&out1)
		r1, err := m1.Run()
		if err != nil {
			t.Fatalf("program %d runtime error: %s\nsource:\n%s", i, err, src)
		}
		m2 := New(program)
		m2.SetOutput(&out2)
		r2, err := m2.Run()
		if err != nil {
			t.Fatalf("program %d second run error: %s", i, err)
		}

		if out1.String() != out2.String() || r1 != r2 {
			t.Fatalf("program %d not deterministic\nsource:\n%s", i, src)
		}
		if m1.sp != 0 {
			t.Fatalf("program %d left %d values on the stack\nsource:\n%s", i, m1.sp, src)
		}
	}
}

// generateProgram emits a random but always-valid straight-line program
// using declared int variables, arithmetic and prints.
func generateProgram(rng *rand.Rand) string {
	var sb strings.Builder
	sb.WriteString("fn main() {\n")

	vars := []string{}
	operators := []string{"+", "-", "*"}

	expr := func() string {
		pick := rng.Intn(3)
		if pick == 0 || len(vars) == 0 {
			return itoa(rng.Intn(100))
		}
		if pick == 1 {
			return vars[rng.Intn(len(vars))]
		}
		left := itoa(rng.Intn(50))
		right := itoa(rng.Intn(50) + 1)
		return left + " " + operators[rng.Intn(len(operators))] + " " + right
	}

	stmts := 3 + rng.Intn(8)
	for s := 0; s < stmts; s++ {
		switch rng.Intn(3) {
		case 0:
			name := "v" + itoa(len(vars))
			sb.WriteString("  " + name + ": int = " + expr() + "\n")
			vars = append(vars, name)
		case 1:
			if len(vars) > 0 {
				sb.WriteString("  " + vars[rng.Intn(len(vars))] + " += " + expr() + "\n")
			} else {
				sb.WriteString("  print(" + expr() + ")\n")
			}
		default:
			sb.WriteString("  print(" + expr() + ")\n")
		}
	}

	sb.WriteString("  return " + expr() + "\n}\n")
	return sb.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
