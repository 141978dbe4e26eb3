// Package wasmtest assembles small core wasm modules for tests.
package wasmtest

// Value types and section ids.
const (
	I32 = 0x7f

	SectionType     = 1
	SectionImport   = 2
	SectionFunction = 3
	SectionMemory   = 5
	SectionExport   = 7
	SectionCode     = 10
	SectionData     = 11

	ExportFunc   = 0x00
	ExportMemory = 0x02
)

// Header is the module preamble.
var Header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// ULEB encodes n as unsigned LEB128.
func ULEB(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

// Cat concatenates byte slices.
func Cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Vec encodes a counted vector.
func Vec(items ...[]byte) []byte {
	return Cat(ULEB(len(items)), Cat(items...))
}

// Name encodes a length-prefixed name.
func Name(s string) []byte {
	return Cat(ULEB(len(s)), []byte(s))
}

// Section wraps a payload with its id and size.
func Section(id byte, payload []byte) []byte {
	return Cat([]byte{id}, ULEB(len(payload)), payload)
}

// FuncType encodes a function type.
func FuncType(params, results []byte) []byte {
	return Cat([]byte{0x60}, ULEB(len(params)), params, ULEB(len(results)), results)
}

// Import encodes a function import.
func Import(module, name string, typeIdx int) []byte {
	return Cat(Name(module), Name(name), []byte{0x00}, ULEB(typeIdx))
}

// Export encodes an export entry.
func Export(name string, kind byte, idx int) []byte {
	return Cat(Name(name), []byte{kind}, ULEB(idx))
}

// Body encodes a function body without locals.
func Body(instrs ...byte) []byte {
	fn := Cat([]byte{0x00}, instrs, []byte{0x0b})
	return Cat(ULEB(len(fn)), fn)
}

// Data encodes an active data segment for memory 0. offset must be below 64.
func Data(offset byte, content string) []byte {
	return Cat([]byte{0x00, 0x41, offset, 0x0b}, Name(content))
}

// Memory returns a module with one memory of the given minimum pages.
func Memory(pages int) []byte {
	return Cat(Header, Section(SectionMemory, Vec(Cat([]byte{0x00}, ULEB(pages)))))
}
