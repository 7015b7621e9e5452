package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hpungsan/scratchpad/internal/config"
	"github.com/hpungsan/scratchpad/internal/db"
	"github.com/hpungsan/scratchpad/internal/eviction"
	"github.com/hpungsan/scratchpad/internal/logging"
	"github.com/hpungsan/scratchpad/internal/mcp"
	"github.com/hpungsan/scratchpad/internal/metrics"
	"github.com/hpungsan/scratchpad/internal/ops"
	"github.com/hpungsan/scratchpad/internal/search"
	"github.com/hpungsan/scratchpad/internal/shutdown"
	"github.com/hpungsan/scratchpad/internal/storage"
	"github.com/hpungsan/scratchpad/internal/validate"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"create": true, "read": true, "list": true, "delete": true,
	"append": true, "tags": true, "namespaces": true,
	"search": true, "validate": true, "stats": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
  scratchpad: multi-tenant notebook store

  Usage: scratchpad <command> [options]
         scratchpad --help

  MCP server mode requires piped input.`)
}

// instance holds everything main owns for the life of the process.
type instance struct {
	env     *ops.Env
	cfg     *config.Config
	sweeper *eviction.Sweeper
	close   func()
}

// loadConfig resolves ~/.scratchpad, the nearest repo .scratchpad directory
// and SCRATCHPAD_* overrides, in that order. SCRATCHPAD_CONFIG names a single
// file that replaces the two directory lookups.
func loadConfig() (*config.Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("could not determine home directory: %w", err)
	}
	globalDir := filepath.Join(homeDir, ".scratchpad")

	var cfg *config.Config
	if path, ok := os.LookupEnv("SCRATCHPAD_CONFIG"); ok && path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cwd, wdErr := os.Getwd()
		if wdErr != nil {
			cwd = globalDir
		}
		cfg, err = config.LoadWithRepo(globalDir, cwd)
	}
	if err != nil {
		return nil, "", err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	storageDir := globalDir
	if cfg.StorageDir != "" {
		storageDir = cfg.StorageDir
	}
	return cfg, storageDir, nil
}

// bootstrap opens the database and assembles the operation environment.
func bootstrap(ctx context.Context, cfg *config.Config, storageDir string, logger *slog.Logger) (*instance, error) {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	conn, err := db.Init(storageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(conn, cfg)

	store, err := storage.New(ctx, conn, cfg, storage.WithLogger(logging.Component("storage")))
	if err != nil {
		conn.Close()
		return nil, err
	}
	if moved, err := store.MigrateDefaultTenant(ctx, cfg.Tenant); err != nil {
		conn.Close()
		return nil, err
	} else if len(moved) > 0 {
		logger.Info("migrated default tenant scratchpads", "tenant_id", cfg.Tenant, "count", len(moved))
	}

	metrics.Install(metrics.NewRegistry())

	model, batch := cfg.EmbeddingModel, cfg.EmbeddingBatchSize
	searcher := search.NewService(store, cfg.SemanticSearchEnabled(), func() (search.Embedder, error) {
		return search.NewEmbedder(model, batch)
	}, logging.Component("search"))

	rt := &instance{
		env: &ops.Env{
			Store:     store,
			Search:    searcher,
			Validator: validate.NewDispatcher(logging.Component("validate")),
			Shutdown:  shutdown.New(),
			Config:    cfg,
			Logger:    logging.Component("ops"),
		},
		cfg:   cfg,
		close: func() { conn.Close() },
	}

	if cfg.EvictionPolicy == config.PolicyPreempt {
		rt.sweeper = eviction.NewSweeper(store, cfg.PreemptAge.Std(), cfg.PreemptInterval.Std(), logging.Component("eviction"))
		rt.sweeper.Start(ctx)
	}
	return rt, nil
}

// stop refuses new operations, waits for in-flight ones, then releases resources.
func (rt *instance) stop(logger *slog.Logger) {
	rt.env.Shutdown.RequestShutdown(rt.cfg.ShutdownTimeout.Std())
	if !rt.env.Shutdown.WaitForDrain() {
		logger.Warn("shutdown timed out with operations in flight", "active", rt.env.Shutdown.Active())
	}
	if rt.sweeper != nil {
		rt.sweeper.Stop()
	}
	if r := metrics.Installed(); r != nil {
		snap := r.Snapshot()
		logger.Debug("metrics at shutdown", "operations", snap.Operations, "errors", snap.Errors,
			"evictions", snap.Evictions, "uptime_seconds", snap.UptimeSeconds)
	}
	rt.close()
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Help and version need no database
	if isHelpOrVersion(args) {
		if err := newCLIApp(nil).Run(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	cliMode := isCLIMode(args)
	if !cliMode && len(args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
		fmt.Fprintf(os.Stderr, "Run 'scratchpad --help' for usage.\n")
		return 1
	}

	cfg, storageDir, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	// stdout belongs to the MCP protocol or to CLI JSON output
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := bootstrap(ctx, cfg, storageDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.stop(logger)

	if cliMode {
		if err := newCLIApp(rt.env).RunContext(ctx, args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	logger.Info("serving MCP over stdio", "version", Version, "tenant_id", rt.env.Store.Tenant())
	if err := mcp.Run(rt.env, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
