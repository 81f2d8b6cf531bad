package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/zerolang/zero/internal/config"
)

// programMagic identifies a Zero bytecode file.
var programMagic = [4]byte{'Z', 'R', 'B', 'C'}

// FormatVersion is the current bytecode format version. Any incompatible
// structural change to Program, Chunk, Value or the opcode numbering
// requires a bump; loaders never up- or downgrade across versions.
const FormatVersion byte = 0x01

// headerSize is magic plus the version byte.
const headerSize = 5

var (
	ErrBadMagic        = errors.New("not a Zero bytecode file")
	ErrVersionMismatch = errors.New("bytecode version mismatch")
	ErrTooLarge        = errors.New("bytecode file exceeds size limit")
)

// cborEncMode uses canonical encoding so the same program always produces
// the same bytes (maps sorted, shortest forms).
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Encode serializes a program to the versioned binary container:
// 4-byte magic "ZRBC", one version byte, then the CBOR-encoded program.
func Encode(p *Program) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to encode invalid program: %w", err)
	}

	buf := new(bytes.Buffer)
	buf.Write(programMagic[:])
	buf.WriteByte(FormatVersion)

	payload, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding program: %w", err)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses a versioned binary container back into a Program.
// Loading is all-or-nothing: any failure leaves no partial program behind,
// and a malformed payload is never interpreted as an empty program.
func Decode(data []byte) (*Program, error) {
	if len(data) > config.MaxProgramFileSize {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrTooLarge, len(data), config.MaxProgramFileSize)
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrBadMagic, len(data))
	}
	if !bytes.Equal(data[:4], programMagic[:]) {
		return nil, ErrBadMagic
	}
	if version := data[4]; version != FormatVersion {
		return nil, fmt.Errorf("%w: file has version %d, this build expects %d; recompile the source file",
			ErrVersionMismatch, version, FormatVersion)
	}

	var p Program
	if err := cbor.Unmarshal(data[headerSize:], &p); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("decoded program is invalid: %w", err)
	}
	return &p, nil
}

// SaveProgram writes the encoded program to path.
func SaveProgram(p *Program, path string) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadProgram reads and decodes a bytecode file. The size limit is enforced
// before any decoding work happens.
func LoadProgram(path string) (*Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > config.MaxProgramFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, path, info.Size(), config.MaxProgramFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
