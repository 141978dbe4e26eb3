package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/rime-bridge/bridge"
	"github.com/wippyai/rime-bridge/config"
	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/managed"
	"github.com/wippyai/rime-bridge/wasmhost"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to rimebridge.toml (default: user config dir)")
		sharedDir   = flag.String("schema-dir", "", "Shared data directory with *.schema.yaml files")
		userDir     = flag.String("user-dir", "", "User data directory")
		keys        = flag.String("keys", "", "Key sequence to simulate, e.g. \"nihao{space}\"")
		list        = flag.Bool("list", false, "List schemas and exit")
		plugins     = flag.String("plugin", "", "Wasm plugins to load (comma-separated)")
		verbose     = flag.Bool("v", false, "Debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *sharedDir != "" {
		cfg.Rime.SharedDataDir = *sharedDir
	}
	if *userDir != "" {
		cfg.Rime.UserDataDir = *userDir
	}
	if *plugins != "" {
		cfg.Plugins.Paths = append(cfg.Plugins.Paths, strings.Split(*plugins, ",")...)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	if !*interactive && !*list && *keys == "" {
		fmt.Fprintln(os.Stderr, "Usage: rimebridge [-config file] [-schema-dir dir] -keys <sequence>")
		fmt.Fprintln(os.Stderr, "       rimebridge [-config file] [-schema-dir dir] -list")
		fmt.Fprintln(os.Stderr, "       rimebridge [-config file] [-schema-dir dir] -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive && !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
		os.Exit(1)
	}

	log, err := setupLogging(cfg, *interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *keys, *list, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging builds the logger and installs it in every package.
// The TUI owns the terminal, so interactive mode only logs errors.
func setupLogging(cfg *config.Config, interactive bool) (*zap.Logger, error) {
	lc := cfg.Log
	if interactive && !lc.Development {
		lc.Level = "error"
	}
	log, err := lc.Build()
	if err != nil {
		return nil, err
	}
	bridge.SetLogger(log.Named("bridge"))
	engine.SetLogger(log.Named("engine"))
	managed.SetLogger(log.Named("managed"))
	wasmhost.SetLogger(log.Named("wasmhost"))
	return log, nil
}

func run(cfg *config.Config, log *zap.Logger, keys string, listOnly, interactive bool) error {
	ctx := context.Background()

	s, err := openSession(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer s.Close()

	if listOnly {
		return printSchemas(s)
	}
	if interactive {
		return runInteractive(ctx, s)
	}

	commits, snap, err := s.Keys(ctx, keys)
	if err != nil {
		return err
	}
	for _, c := range commits {
		fmt.Printf("commit: %s\n", c)
	}
	printSnapshot(snap)
	return nil
}

func printSchemas(s *session) error {
	items, current, err := s.Schemas()
	if err != nil {
		return err
	}
	fmt.Printf("Schemas:\n")
	for _, it := range items {
		mark := " "
		if it.ID == current {
			mark = "*"
		}
		fmt.Printf(" %s %s\t%s\n", mark, it.ID, it.Name)
	}
	return nil
}

func printSnapshot(snap snapshot) {
	st := snap.Status
	fmt.Printf("schema: %s (%s)\n", st.SchemaID, st.SchemaName)
	if !st.IsComposing {
		return
	}
	fmt.Printf("preedit: %s\n", snap.Context.Composition.Preedit)
	menu := snap.Context.Menu
	for i, c := range menu.Candidates {
		label := fmt.Sprint(i + 1)
		if i < len(snap.Context.SelectLabels) {
			label = snap.Context.SelectLabels[i]
		}
		fmt.Printf("  %s. %s", label, c.Text)
		if c.Comment != "" {
			fmt.Printf(" %s", c.Comment)
		}
		fmt.Println()
	}
	if !menu.IsLastPage {
		fmt.Printf("  (page %d, more)\n", menu.PageNo+1)
	}
}
