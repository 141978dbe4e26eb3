package wasmhost

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/errors"
)

// ModuleName is the import module plugins link against.
const ModuleName = "rime"

// Config holds configuration for host creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per plugin in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Host owns a wazero runtime with the rime host module instantiated.
type Host struct {
	runtime wazero.Runtime

	mu      sync.RWMutex
	handler engine.Handler
	plugins []*Plugin
}

// New creates a host whose plugins deliver notifications to handler.
// A nil handler drops notifications until SetHandler is called.
func New(ctx context.Context, cfg *Config, handler engine.Handler) (*Host, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	h := &Host{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		handler: handler,
	}

	i32 := api.ValueTypeI32
	_, err := h.runtime.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.notify), []api.ValueType{i32, i32, i32, i32}, nil).
		Export("notify").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.log), []api.ValueType{i32, i32}, nil).
		Export("log").
		Instantiate(ctx)
	if err != nil {
		_ = h.runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhasePlugin, errors.KindRegistration, err, "instantiate host module")
	}
	return h, nil
}

// SetHandler replaces the notification handler.
func (h *Host) SetHandler(handler engine.Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Load compiles and instantiates a plugin under a unique name.
func (h *Host) Load(ctx context.Context, name string, wasm []byte) (*Plugin, error) {
	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.New(errors.PhasePlugin, errors.KindInvalidInput).
			Detail("compile plugin %q", name).
			Cause(err).
			Build()
	}

	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize")
	mod, err := h.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.New(errors.PhasePlugin, errors.KindInvalidInput).
			Detail("instantiate plugin %q", name).
			Cause(err).
			Build()
	}

	p := &Plugin{name: name, compiled: compiled, mod: mod}
	h.mu.Lock()
	h.plugins = append(h.plugins, p)
	h.mu.Unlock()

	Logger().Debug("plugin loaded",
		zap.String("plugin", name),
		zap.Bool("on_key", p.Has(OnKeyExport)))
	return p, nil
}

// LoadFile loads a plugin from disk, named after the file without extension.
func (h *Host) LoadFile(ctx context.Context, path string) (*Plugin, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read plugin "+path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return h.Load(ctx, name, wasm)
}

// Plugins returns the loaded plugins in load order.
func (h *Host) Plugins() []*Plugin {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*Plugin(nil), h.plugins...)
}

// OnKey offers a key to every plugin in load order and reports whether one
// of them handled it.
func (h *Host) OnKey(ctx context.Context, keycode, mask int) (bool, error) {
	for _, p := range h.Plugins() {
		handled, err := p.OnKey(ctx, keycode, mask)
		if err != nil {
			return false, err
		}
		if handled {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the runtime and every plugin.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	h.plugins = nil
	h.mu.Unlock()
	return h.runtime.Close(ctx)
}

func (h *Host) notify(_ context.Context, mod api.Module, stack []uint64) {
	typ, err := readString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		panic(err)
	}
	value, err := readString(mod, api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	if err != nil {
		panic(err)
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		Logger().Debug("notification dropped",
			zap.String("plugin", mod.Name()),
			zap.String("type", typ))
		return
	}
	handler(typ, value)
}

func (h *Host) log(_ context.Context, mod api.Module, stack []uint64) {
	msg, err := readString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		panic(err)
	}
	Logger().Info(msg, zap.String("plugin", mod.Name()))
}

// readString copies a UTF-8 string out of guest memory.
func readString(mod api.Module, ptr, length uint32) (string, error) {
	mem := mod.Memory()
	if mem == nil {
		return "", errors.NotFound(errors.PhasePlugin, "memory of plugin", mod.Name())
	}
	b, ok := mem.Read(ptr, length)
	if !ok {
		return "", errors.New(errors.PhasePlugin, errors.KindOutOfBounds).
			Detail("read out of bounds: offset=%d, length=%d, memory=%d", ptr, length, mem.Size()).
			Value(ptr).
			Build()
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidInput(errors.PhasePlugin, "plugin string is not valid UTF-8")
	}
	return string(b), nil
}
