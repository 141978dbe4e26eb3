package wasmhost

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/rime-bridge/errors"
)

// OnKeyExport is the optional key hook a plugin may export.
const OnKeyExport = "on_key"

// Plugin is an instantiated plugin module. Calls are serialized.
type Plugin struct {
	name     string
	compiled wazero.CompiledModule
	mod      api.Module
	mu       sync.Mutex
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return p.name }

// Has reports whether the plugin exports a function.
func (p *Plugin) Has(fn string) bool {
	return p.mod.ExportedFunction(fn) != nil
}

// Call invokes an exported function with raw wasm arguments.
func (p *Plugin) Call(ctx context.Context, fn string, args ...uint64) ([]uint64, error) {
	f := p.mod.ExportedFunction(fn)
	if f == nil {
		return nil, errors.NotFound(errors.PhasePlugin, "export", fn)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	results, err := f.Call(ctx, args...)
	if err != nil {
		return nil, errors.New(errors.PhasePlugin, errors.KindThrown).
			Member(fn).
			Detail("plugin %s trapped", p.name).
			Cause(err).
			Build()
	}
	return results, nil
}

// OnKey calls the plugin's on_key hook. Plugins without one never handle keys.
func (p *Plugin) OnKey(ctx context.Context, keycode, mask int) (bool, error) {
	if !p.Has(OnKeyExport) {
		return false, nil
	}
	results, err := p.Call(ctx, OnKeyExport,
		api.EncodeI32(int32(keycode)),
		api.EncodeI32(int32(mask)))
	if err != nil {
		return false, err
	}
	return len(results) > 0 && api.DecodeI32(results[0]) != 0, nil
}

// Close releases the plugin instance.
func (p *Plugin) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.mod.Close(ctx); err != nil {
		return err
	}
	return p.compiled.Close(ctx)
}
