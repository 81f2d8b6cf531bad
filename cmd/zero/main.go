package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zerolang/zero/internal/bytecode"
	"github.com/zerolang/zero/internal/cache"
	"github.com/zerolang/zero/internal/compiler"
	"github.com/zerolang/zero/internal/config"
	"github.com/zerolang/zero/internal/lexer"
	"github.com/zerolang/zero/internal/logger"
	"github.com/zerolang/zero/internal/parser"
	"github.com/zerolang/zero/internal/semantic"
	"github.com/zerolang/zero/internal/vm"
)

const usage = `The Zero programming language

Usage:
  zero build <file.zr> [-o <output>]   compile to bytecode
  zero run <file.zr|file.zrc>          compile (or load) and execute
  zero disasm <file.zr|file.zrc>       print bytecode disassembly

Flags:
  -v    verbose logging
  -n    disable color output
`

// compileSource runs the full front end on a source file.
func compileSource(path string) (*bytecode.Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}

	tokens, err := lexer.Tokenize(string(source))
	if err != nil {
		return nil, err
	}
	program, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	if err := semantic.Analyze(program); err != nil {
		return nil, err
	}
	return compiler.Compile(program)
}

// loadInput compiles a .zr file or loads a .zrc file, depending on extension.
func loadInput(path string) (*bytecode.Program, error) {
	switch filepath.Ext(path) {
	case config.SourceFileExt:
		return compileSource(path)
	case config.CompiledFileExt:
		return bytecode.LoadProgram(path)
	default:
		return nil, fmt.Errorf("expected %s or %s file, got %s",
			config.SourceFileExt, config.CompiledFileExt, filepath.Ext(path))
	}
}

func requireFile(path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: file not found: %s\n", path)
		os.Exit(1)
	}
}

func handleBuild(args []string) bool {
	if len(args) < 1 || args[0] != "build" {
		return false
	}

	sourcePath := ""
	outputPath := ""
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 < len(args) {
				outputPath = args[i+1]
				i++
			}
		default:
			if sourcePath == "" {
				sourcePath = args[i]
			}
		}
	}

	if sourcePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: zero build <file%s> [-o <output>]\n", config.SourceFileExt)
		os.Exit(1)
	}
	if filepath.Ext(sourcePath) != config.SourceFileExt {
		fmt.Fprintf(os.Stderr, "Error: expected %s file, got %s\n",
			config.SourceFileExt, filepath.Ext(sourcePath))
		os.Exit(1)
	}
	requireFile(sourcePath)

	program, err := compileSource(sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if outputPath == "" {
		outputPath, err = cache.EnsureDir(sourcePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}

	if err := bytecode.SaveProgram(program, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	log.Debug("compiled", "functions", len(program.Chunks), "output", outputPath)
	fmt.Printf("Compiled to %s\n", outputPath)
	return true
}

func handleRun(args []string) bool {
	if len(args) < 1 || args[0] != "run" {
		return false
	}

	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: zero run <file%s|file%s>\n",
			config.SourceFileExt, config.CompiledFileExt)
		os.Exit(1)
	}
	path := args[1]
	requireFile(path)

	program, err := loadInput(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	machine := vm.New(program)
	if _, err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return true
}

func handleDisasm(args []string) bool {
	if len(args) < 1 || args[0] != "disasm" {
		return false
	}

	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: zero disasm <file%s|file%s>\n",
			config.SourceFileExt, config.CompiledFileExt)
		os.Exit(1)
	}
	path := args[1]
	requireFile(path)

	program, err := loadInput(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	fmt.Print(bytecode.DisassembleProgram(program))
	return true
}

func main() {
	// Catch panics and show a user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r) // re-panic to get stack trace
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	// Strip global flags before subcommand dispatch.
	verbose := false
	noColor := false
	var args []string
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-v", "--verbose":
			verbose = true
		case "-n", "--no-color":
			noColor = true
		default:
			args = append(args, arg)
		}
	}
	logger.Init(verbose, noColor)

	if len(args) == 0 || args[0] == "help" || strings.HasPrefix(args[0], "-h") || args[0] == "--help" {
		fmt.Print(usage)
		return
	}

	if handleBuild(args) {
		return
	}
	if handleRun(args) {
		return
	}
	if handleDisasm(args) {
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
	fmt.Fprint(os.Stderr, usage)
	os.Exit(1)
}
