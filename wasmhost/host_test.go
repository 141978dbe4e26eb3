package wasmhost

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/internal/wasmtest"
)

// Plugin module used by the tests:
//
//	(module
//	  (import "rime" "notify" (func (param i32 i32 i32 i32)))
//	  (import "rime" "log" (func (param i32 i32)))
//	  (memory (export "memory") 1)
//	  (func (export "emit") (call 0 (i32.const 0) (i32.const 6) (i32.const 16) (i32.const 10)))
//	  (func (export "on_key") (param i32 i32) (result i32) (i32.eq (local.get 0) (i32.const 32)))
//	  (func (export "bad") (call 0 (i32.const 0) (i32.const 6) (i32.const 65530) (i32.const 10)))
//	  (func (export "say") (call 1 (i32.const 0) (i32.const 6)))
//	  (data (i32.const 0) "option")
//	  (data (i32.const 16) "ascii_mode"))
func pluginWasm() []byte {
	i32 := []byte{wasmtest.I32}
	types := wasmtest.Vec(
		wasmtest.FuncType([]byte{wasmtest.I32, wasmtest.I32, wasmtest.I32, wasmtest.I32}, nil),
		wasmtest.FuncType(nil, nil),
		wasmtest.FuncType([]byte{wasmtest.I32, wasmtest.I32}, i32),
		wasmtest.FuncType([]byte{wasmtest.I32, wasmtest.I32}, nil),
	)
	imports := wasmtest.Vec(
		wasmtest.Import(ModuleName, "notify", 0),
		wasmtest.Import(ModuleName, "log", 3),
	)
	funcs := wasmtest.Vec([]byte{1}, []byte{2}, []byte{1}, []byte{1})
	memory := wasmtest.Vec([]byte{0x00, 1})
	exports := wasmtest.Vec(
		wasmtest.Export("memory", wasmtest.ExportMemory, 0),
		wasmtest.Export("emit", wasmtest.ExportFunc, 2),
		wasmtest.Export("on_key", wasmtest.ExportFunc, 3),
		wasmtest.Export("bad", wasmtest.ExportFunc, 4),
		wasmtest.Export("say", wasmtest.ExportFunc, 5),
	)
	code := wasmtest.Vec(
		wasmtest.Body(0x41, 0, 0x41, 6, 0x41, 16, 0x41, 10, 0x10, 0),
		wasmtest.Body(0x20, 0, 0x41, 32, 0x46),
		wasmtest.Body(0x41, 0, 0x41, 6, 0x41, 0xFA, 0xFF, 0x03, 0x41, 10, 0x10, 0),
		wasmtest.Body(0x41, 0, 0x41, 6, 0x10, 1),
	)
	data := wasmtest.Vec(
		wasmtest.Data(0, "option"),
		wasmtest.Data(16, "ascii_mode"),
	)

	return wasmtest.Cat(
		wasmtest.Header,
		wasmtest.Section(wasmtest.SectionType, types),
		wasmtest.Section(wasmtest.SectionImport, imports),
		wasmtest.Section(wasmtest.SectionFunction, funcs),
		wasmtest.Section(wasmtest.SectionMemory, memory),
		wasmtest.Section(wasmtest.SectionExport, exports),
		wasmtest.Section(wasmtest.SectionCode, code),
		wasmtest.Section(wasmtest.SectionData, data),
	)
}

// (module (memory 2))
var twoPageWasm = wasmtest.Memory(2)

type recorded struct {
	mu    sync.Mutex
	items [][2]string
}

func (r *recorded) handle(typ, value string) {
	r.mu.Lock()
	r.items = append(r.items, [2]string{typ, value})
	r.mu.Unlock()
}

func (r *recorded) list() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]string(nil), r.items...)
}

func newTestHost(t *testing.T, cfg *Config, handler func(string, string)) *Host {
	t.Helper()
	ctx := context.Background()
	h, err := New(ctx, cfg, handler)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = h.Close(ctx) })
	return h
}

func TestHost_Notify(t *testing.T) {
	ctx := context.Background()
	rec := &recorded{}
	h := newTestHost(t, nil, rec.handle)

	p, err := h.Load(ctx, "modes", pluginWasm())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Name() != "modes" {
		t.Errorf("expected name modes, got %q", p.Name())
	}

	if _, err := p.Call(ctx, "emit"); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	got := rec.list()
	if len(got) != 1 || got[0] != [2]string{"option", "ascii_mode"} {
		t.Errorf("unexpected notifications: %v", got)
	}
}

func TestHost_NilHandlerDrops(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, nil, nil)

	p, err := h.Load(ctx, "modes", pluginWasm())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := p.Call(ctx, "emit"); err != nil {
		t.Fatalf("emit without handler failed: %v", err)
	}

	rec := &recorded{}
	h.SetHandler(rec.handle)
	if _, err := p.Call(ctx, "emit"); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if len(rec.list()) != 1 {
		t.Errorf("expected 1 notification after SetHandler, got %d", len(rec.list()))
	}
}

func TestHost_OutOfBounds(t *testing.T) {
	ctx := context.Background()
	rec := &recorded{}
	h := newTestHost(t, nil, rec.handle)

	p, err := h.Load(ctx, "modes", pluginWasm())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	_, err = p.Call(ctx, "bad")
	if err == nil {
		t.Fatal("expected error for read past memory")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhasePlugin, Kind: errors.KindOutOfBounds}) {
		t.Errorf("expected out_of_bounds, got %v", err)
	}
	if len(rec.list()) != 0 {
		t.Errorf("no notification may be delivered, got %v", rec.list())
	}

	// the instance stays usable after a trap
	if _, err := p.Call(ctx, "emit"); err != nil {
		t.Errorf("emit after trap failed: %v", err)
	}
}

func TestPlugin_MissingExport(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, nil, nil)

	p, err := h.Load(ctx, "modes", pluginWasm())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, err = p.Call(ctx, "missing")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhasePlugin, Kind: errors.KindNotFound}) {
		t.Errorf("expected not_found, got %v", err)
	}
	if p.Has("missing") || !p.Has("emit") {
		t.Error("Has does not match the exports")
	}
}

func TestHost_OnKey(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, nil, nil)

	handled, err := h.OnKey(ctx, 0x20, 0)
	if err != nil || handled {
		t.Fatalf("no plugins: handled=%v err=%v", handled, err)
	}

	// a plugin without on_key never handles keys
	if _, err := h.Load(ctx, "empty", twoPageWasm); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := h.Load(ctx, "space", pluginWasm()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n := len(h.Plugins()); n != 2 {
		t.Fatalf("expected 2 plugins, got %d", n)
	}

	tests := []struct {
		keycode int
		want    bool
	}{
		{0x20, true},
		{'a', false},
		{0xff0d, false},
	}
	for _, tt := range tests {
		handled, err := h.OnKey(ctx, tt.keycode, 0)
		if err != nil {
			t.Fatalf("OnKey(%#x) failed: %v", tt.keycode, err)
		}
		if handled != tt.want {
			t.Errorf("OnKey(%#x) = %v, want %v", tt.keycode, handled, tt.want)
		}
	}
}

func TestHost_Log(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	h := newTestHost(t, nil, nil)
	p, err := h.Load(ctx, "talker", pluginWasm())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := p.Call(ctx, "say"); err != nil {
		t.Fatalf("say failed: %v", err)
	}

	entries := logs.FilterMessage("option").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["plugin"]; got != "talker" {
		t.Errorf("expected plugin field talker, got %v", got)
	}
}

func TestHost_MemoryLimit(t *testing.T) {
	ctx := context.Background()

	h := newTestHost(t, &Config{MemoryLimitPages: 1}, nil)
	_, err := h.Load(ctx, "big", twoPageWasm)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhasePlugin, Kind: errors.KindInvalidInput}) {
		t.Errorf("expected a 2 page module to be rejected, got %v", err)
	}

	h = newTestHost(t, &Config{MemoryLimitPages: 2}, nil)
	if _, err := h.Load(ctx, "big", twoPageWasm); err != nil {
		t.Errorf("2 page module within limit failed: %v", err)
	}
}

func TestHost_LoadErrors(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, nil, nil)

	if _, err := h.Load(ctx, "junk", []byte("not wasm")); err == nil {
		t.Error("expected compile error")
	}

	if _, err := h.Load(ctx, "dup", twoPageWasm); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := h.Load(ctx, "dup", twoPageWasm); err == nil {
		t.Error("expected error for duplicate plugin name")
	}

	if _, err := h.LoadFile(ctx, filepath.Join(t.TempDir(), "absent.wasm")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHost_LoadFile(t *testing.T) {
	ctx := context.Background()
	rec := &recorded{}
	h := newTestHost(t, nil, rec.handle)

	path := filepath.Join(t.TempDir(), "modes.wasm")
	if err := os.WriteFile(path, pluginWasm(), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := h.LoadFile(ctx, path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if p.Name() != "modes" {
		t.Errorf("expected name from file, got %q", p.Name())
	}
	if err := p.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
