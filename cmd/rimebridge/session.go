package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/bridge"
	"github.com/wippyai/rime-bridge/config"
	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/engine/table"
	"github.com/wippyai/rime-bridge/jni"
	"github.com/wippyai/rime-bridge/managed"
	"github.com/wippyai/rime-bridge/managed/trime"
	"github.com/wippyai/rime-bridge/wasmhost"
)

// session is the managed side of the console: a VM with the Trime classes,
// the bridge library over a table engine, and the wasm plugins. Every
// managed call runs on one attached thread.
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	vm     *managed.VM
	lib    *bridge.Library
	eng    *table.Engine
	host   *wasmhost.Host
	thread *bridge.Thread
	client *trime.Client
	notes  *trime.Recorder
	cancel context.CancelFunc
}

// snapshot is what the console shows after each key.
type snapshot struct {
	Commit  string
	Context engine.Context
	Status  engine.Status
	Handled bool
}

func openSession(ctx context.Context, cfg *config.Config, log *zap.Logger) (*session, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		cfg:    cfg,
		log:    log,
		eng:    table.New(),
		notes:  trime.NewRecorder(),
		cancel: cancel,
	}

	opts := cfg.VMOptions()
	opts.OnFatal = func(err error) {
		log.Error("managed runtime misuse", zap.Error(err))
	}
	s.vm = managed.New(opts)
	if err := trime.Define(s.vm, s.notify); err != nil {
		cancel()
		return nil, fmt.Errorf("define classes: %w", err)
	}

	thread, err := bridge.NewThread(s.vm)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("attach console thread: %w", err)
	}
	s.thread = thread

	s.lib = bridge.NewLibrary(s.eng)
	err = s.do(func(c *trime.Client) error {
		if err := s.vm.LoadLibrary(s.lib); err != nil {
			return err
		}
		r := cfg.Rime
		return c.Startup(r.SharedDataDir, r.UserDataDir, r.AppVersion, r.FullCheck)
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	s.host, err = wasmhost.New(ctx, &wasmhost.Config{MemoryLimitPages: cfg.Plugins.MemoryLimitPages}, s.lib.Notifier().Handle)
	if err != nil {
		s.Close()
		return nil, err
	}
	for _, path := range cfg.Plugins.Paths {
		if _, err := s.host.LoadFile(ctx, path); err != nil {
			s.Close()
			return nil, err
		}
	}

	if cfg.Rime.Watch {
		if err := s.eng.Watch(ctx); err != nil {
			log.Warn("schema watch disabled", zap.Error(err))
		}
	}
	return s, nil
}

// notify is the application's handleRimeNotification.
func (s *session) notify(messageType, messageValue string) error {
	s.log.Debug("notification",
		zap.String("type", messageType),
		zap.String("value", messageValue))
	return s.notes.Handle(messageType, messageValue)
}

// do runs fn on the session thread with a client bound to its env.
func (s *session) do(fn func(c *trime.Client) error) error {
	var err error
	if derr := s.thread.Do(func(env jni.Env) {
		if s.client == nil {
			s.client = trime.NewClient(env.(*managed.Env))
		}
		err = fn(s.client)
	}); derr != nil {
		return derr
	}
	return err
}

// Key offers a key to the plugins, then to the engine, and returns the
// resulting state.
func (s *session) Key(ctx context.Context, ev engine.KeyEvent) (snapshot, error) {
	handled, err := s.host.OnKey(ctx, ev.Keycode, ev.Mask)
	if err != nil {
		s.log.Warn("plugin key hook failed", zap.Error(err))
		handled = false
	}

	var snap snapshot
	err = s.do(func(c *trime.Client) error {
		if !handled {
			var err error
			if handled, err = c.ProcessKey(int32(ev.Keycode), int32(ev.Mask)); err != nil {
				return err
			}
		}
		snap.Handled = handled
		return s.read(c, &snap)
	})
	return snap, err
}

// Keys feeds a key sequence and collects every commit.
func (s *session) Keys(ctx context.Context, seq string) ([]string, snapshot, error) {
	events, err := engine.ParseKeySequence(seq)
	if err != nil {
		return nil, snapshot{}, err
	}
	var (
		commits []string
		snap    snapshot
	)
	for _, ev := range events {
		if snap, err = s.Key(ctx, ev); err != nil {
			return commits, snap, err
		}
		if snap.Commit != "" {
			commits = append(commits, snap.Commit)
		}
	}
	return commits, snap, nil
}

// Snapshot reads the current state without input.
func (s *session) Snapshot() (snapshot, error) {
	var snap snapshot
	err := s.do(func(c *trime.Client) error { return s.read(c, &snap) })
	return snap, err
}

func (s *session) read(c *trime.Client, snap *snapshot) error {
	commit, ok, err := c.Commit()
	if err != nil {
		return err
	}
	if ok {
		snap.Commit = commit.Text
	}
	if snap.Context, err = c.Context(); err != nil {
		return err
	}
	snap.Status, err = c.Status()
	return err
}

// Schemas returns the schema list and the current schema id.
func (s *session) Schemas() ([]engine.SchemaItem, string, error) {
	var (
		list    []engine.SchemaItem
		current string
	)
	err := s.do(func(c *trime.Client) error {
		var err error
		if list, err = c.SchemaList(); err != nil {
			return err
		}
		current, err = c.CurrentSchema()
		return err
	})
	return list, current, err
}

// SelectSchema switches the schema.
func (s *session) SelectSchema(id string) (bool, error) {
	var ok bool
	err := s.do(func(c *trime.Client) error {
		var err error
		ok, err = c.SelectSchema(id)
		return err
	})
	return ok, err
}

// ToggleOption flips an option and returns its new value.
func (s *session) ToggleOption(name string) (bool, error) {
	var value bool
	err := s.do(func(c *trime.Client) error {
		cur, err := c.Option(name)
		if err != nil {
			return err
		}
		value = !cur
		return c.SetOption(name, value)
	})
	return value, err
}

// Deploy requests a redeploy.
func (s *session) Deploy() error {
	return s.do(func(c *trime.Client) error {
		_, err := c.Deploy()
		return err
	})
}

// Notifications returns every notification delivered so far.
func (s *session) Notifications() []trime.Notification {
	return s.notes.List()
}

// Close stops the engine, unloads the library and detaches the thread.
func (s *session) Close() {
	s.cancel()
	if s.host != nil {
		_ = s.host.Close(context.Background())
	}
	if s.thread != nil {
		_ = s.thread.Do(func(jni.Env) {
			if s.client != nil && s.lib.Started() {
				_ = s.client.Exit()
			}
			_ = s.vm.Close()
		})
		s.thread.Close()
	}
}
