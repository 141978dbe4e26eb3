// Package table implements a deterministic table-lookup input engine over
// schemas loaded by package schema.
//
// Letters of the schema alphabet build the input; candidates are the
// entries of every table code starting with the input, exact matches first.
// The engine is small on purpose: it drives the bridge end to end in the
// command-line tool and in tests without a real engine library.
package table

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/engine/schema"
	"github.com/wippyai/rime-bridge/errors"
)

// Version is reported by Engine.Version.
const Version = "table-1.0.0"

// Option names with a fixed meaning in Status.
const (
	OptionASCIIMode      = "ascii_mode"
	OptionFullShape      = "full_shape"
	OptionSimplification = "simplification"
	OptionTraditional    = "traditional"
	OptionASCIIPunct     = "ascii_punct"
)

// Engine is a table engine. It is safe for concurrent use.
type Engine struct {
	catalog *schema.Catalog
	current *schema.Schema
	options map[string]bool
	handler engine.Handler
	watcher *schema.Watcher
	commit  *string
	traits  engine.Traits

	input       string
	cands       []engine.Candidate
	caret       int
	page        int
	highlighted int

	idle      *sync.Cond
	deploying bool
	redeploy  bool
	started   bool
	stopping  bool
	mu        sync.Mutex
}

var _ engine.Engine = (*Engine)(nil)

// New creates a stopped engine.
func New() *Engine {
	e := &Engine{options: make(map[string]bool)}
	e.idle = sync.NewCond(&e.mu)
	return e
}

func (e *Engine) logger() *zap.Logger {
	return engine.Logger().With(zap.String("engine", "table"))
}

// Startup loads the schemas and selects the first one. With FullCheck a
// deploy runs in the background afterwards.
func (e *Engine) Startup(traits engine.Traits) error {
	cat, err := schema.Load(e.logger(), traits.SharedDataDir, traits.UserDataDir)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.started || e.stopping {
		e.mu.Unlock()
		return errors.New(errors.PhaseLoad, errors.KindInvalidInput).Detail("engine already started").Build()
	}
	e.traits = traits
	e.catalog = cat
	e.started = true
	if ids := cat.SchemaIDs(); len(ids) > 0 {
		e.selectLocked(ids[0])
	}
	e.mu.Unlock()

	e.logger().Info("engine started",
		zap.String("shared_data_dir", traits.SharedDataDir),
		zap.String("user_data_dir", traits.UserDataDir),
		zap.Int("schemas", len(cat.Schemas)))

	if traits.FullCheck {
		return e.Deploy()
	}
	return nil
}

// Shutdown stops the engine and waits for a running deploy to finish.
// No new deploy starts once Shutdown has begun.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.stopping = true
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()

	if w != nil {
		_ = w.Close()
	}

	e.mu.Lock()
	for e.deploying {
		e.idle.Wait()
	}
	e.current = nil
	e.catalog = nil
	e.resetLocked()
	e.stopping = false
	e.mu.Unlock()
}

// Deploy reloads schemas on a background goroutine, reporting
// deploy/start and deploy/success or deploy/failure. A deploy requested
// while one runs is folded into a single rerun.
func (e *Engine) Deploy() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return errors.NotInitialized(errors.PhaseLoad, "engine")
	}
	if e.deploying {
		e.redeploy = true
		e.mu.Unlock()
		return nil
	}
	e.deploying = true
	e.mu.Unlock()

	go e.deployLoop()
	return nil
}

func (e *Engine) deployLoop() {
	for {
		e.notify(engine.NotifyDeploy, engine.DeployStart)

		e.mu.Lock()
		traits := e.traits
		e.mu.Unlock()

		cat, err := schema.Load(e.logger(), traits.SharedDataDir, traits.UserDataDir)
		if err != nil {
			e.logger().Error("deploy failed", zap.Error(err))
			e.notify(engine.NotifyDeploy, engine.DeployFailure)
		} else {
			e.mu.Lock()
			if e.started {
				e.catalog = cat
				id := ""
				if e.current != nil {
					id = e.current.ID
				}
				if _, ok := cat.Schema(id); !ok {
					if ids := cat.SchemaIDs(); len(ids) > 0 {
						id = ids[0]
					}
				}
				e.selectLocked(id)
			}
			e.mu.Unlock()
			e.notify(engine.NotifyDeploy, engine.DeploySuccess)
		}

		e.mu.Lock()
		if !e.redeploy || !e.started {
			e.deploying = false
			e.redeploy = false
			e.idle.Broadcast()
			e.mu.Unlock()
			return
		}
		e.redeploy = false
		e.mu.Unlock()
	}
}

// WaitDeploy blocks until no deploy is running.
func (e *Engine) WaitDeploy() {
	e.mu.Lock()
	for e.deploying {
		e.idle.Wait()
	}
	e.mu.Unlock()
}

// Watch redeploys whenever a schema or config file changes in the data
// directories. The watch ends at Shutdown or when ctx is cancelled.
func (e *Engine) Watch(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return errors.NotInitialized(errors.PhaseLoad, "engine")
	}
	var dirs []string
	for _, dir := range []string{e.traits.SharedDataDir, e.traits.UserDataDir} {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	e.mu.Unlock()

	w := schema.NewWatcher(dirs...)

	w.OnChange(func(path string) {
		e.logger().Info("data file changed, redeploying", zap.String("path", path))
		if err := e.Deploy(); err != nil {
			e.logger().Warn("redeploy skipped", zap.Error(err))
		}
	})
	if err := w.Start(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		_ = w.Close()
		return errors.NotInitialized(errors.PhaseLoad, "engine")
	}
	old := e.watcher
	e.watcher = w
	e.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// SyncUserData has nothing to synchronize for a table engine beyond
// reporting success when started.
func (e *Engine) SyncUserData() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return errors.NotInitialized(errors.PhaseLoad, "engine")
	}
	return nil
}

// SetNotificationHandler sets the handler for engine notifications.
func (e *Engine) SetNotificationHandler(h engine.Handler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// notify must be called without e.mu held: handlers may call back in.
func (e *Engine) notify(messageType, value string) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h(messageType, value)
	}
}

func (e *Engine) Version() string { return Version }

func (e *Engine) SetOption(name string, value bool) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	changed := e.options[name] != value
	e.options[name] = value
	e.mu.Unlock()

	if changed {
		e.notify(engine.NotifyOption, engine.OptionValue(name, value))
	}
}

func (e *Engine) Option(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.options[name]
}

func (e *Engine) SchemaList() []engine.SchemaItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.catalog == nil {
		return nil
	}
	ids := e.catalog.SchemaIDs()
	out := make([]engine.SchemaItem, 0, len(ids))
	for _, id := range ids {
		s, _ := e.catalog.Schema(id)
		out = append(out, engine.SchemaItem{ID: s.ID, Name: s.Name})
	}
	return out
}

func (e *Engine) CurrentSchema() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return ""
	}
	return e.current.ID
}

// SelectSchema switches to a schema by id, reporting schema/<id>/<name>.
func (e *Engine) SelectSchema(id string) bool {
	e.mu.Lock()
	if !e.started || e.catalog == nil {
		e.mu.Unlock()
		return false
	}
	if _, ok := e.catalog.Schema(id); !ok {
		e.mu.Unlock()
		return false
	}
	e.selectLocked(id)
	s := e.current
	e.mu.Unlock()

	e.notify(engine.NotifySchema, engine.SchemaValue(s.ID, s.Name))
	return true
}

func (e *Engine) selectLocked(id string) {
	s, ok := e.catalog.Schema(id)
	if !ok {
		e.current = nil
		e.resetLocked()
		return
	}
	e.current = s
	for _, sw := range s.Switches {
		if sw.Reset != nil {
			e.options[sw.Name] = *sw.Reset != 0
		}
	}
	e.resetLocked()
}

func (e *Engine) Config(configID, key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.catalog == nil {
		return nil, false
	}
	return e.catalog.Config(configID, key)
}

// lookup computes the candidates of input: exact code first, then longer
// codes in code order with the remaining code as comment.
func lookup(s *schema.Schema, input string) []engine.Candidate {
	if s == nil || input == "" {
		return nil
	}
	var codes []string
	for code := range s.Table {
		if strings.HasPrefix(code, input) {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool {
		if len(codes[i]) != len(codes[j]) {
			return len(codes[i]) < len(codes[j])
		}
		return codes[i] < codes[j]
	})

	var out []engine.Candidate
	for _, code := range codes {
		for _, ent := range s.Table[code] {
			c := engine.Candidate{Text: ent.Text, Comment: ent.Comment}
			if code != input && c.Comment == "" {
				c.Comment = "~" + code[len(input):]
			}
			out = append(out, c)
		}
	}
	return out
}
