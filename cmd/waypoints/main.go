// ABOUTME: Entry point for the waypoints CLI
// ABOUTME: Dispatches subcommands against a holder store backed by SQLite

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/wordmann/waypoints/internal/audit"
	"github.com/wordmann/waypoints/internal/auth"
	"github.com/wordmann/waypoints/internal/config"
	"github.com/wordmann/waypoints/internal/store"
	"github.com/wordmann/waypoints/internal/waypoints"
)

// Version is set at build time.
var version = "dev"

const banner = `
                              _       _
 __      ____ _ _   _ _ __   ___ (_)_ __ | |_ ___
 \ \ /\ / / _' | | | | '_ \ / _ \| | '_ \| __/ __|
  \ V  V / (_| | |_| | |_) | (_) | | | | | |_\__ \
   \_/\_/ \__,_|\__, | .__/ \___/|_|_| |_|\__|___/
                |___/|_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = runInit()
	case "token":
		err = runToken(args)
	case "help", "-h", "--help":
		printUsage()
	case "folders", "list", "create-folder", "create", "move", "rm", "rm-folder",
		"search", "count", "export", "audit":
		err = runHolderCommand(ctx, cmd, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)
	fmt.Println("Usage: waypoints <command> [args] [--holder <holder>] [--token <jwt>]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  init                                  Create a config file interactively")
	fmt.Println("  folders                               List folders with waypoint counts")
	fmt.Println("  list [folder]                         List waypoints, optionally of one folder")
	fmt.Println("  create-folder <name>                  Create a folder (--description, --icon)")
	fmt.Println("  create <name> <world> <x> <y> <z>     Create a waypoint (--folder, --description,")
	fmt.Println("                                        --icon, --visibility, --by)")
	fmt.Println("  move <waypoint> [folder]              Move a waypoint; no folder means top level")
	fmt.Println("  rm <waypoint>                         Delete a waypoint")
	fmt.Println("  rm-folder <folder>                    Delete a folder (holders.folder_delete_policy)")
	fmt.Println("  search <query>                        Search waypoints; folder/name narrows by folder")
	fmt.Println("  count                                 Count folders and waypoints")
	fmt.Println("  export [--html] [--out file]          Export the holder as Markdown or HTML")
	fmt.Println("  audit [--limit n] [--kind k]          Show recent changes of the holder")
	fmt.Println("  token --subject s [--caps a,b]        Issue a capability token (--ttl 720h)")
	fmt.Println()
	yellow.Println("Holders:")
	fmt.Println("  global (default), group, group:<key>, individual:<owner>")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Printf("  %-18s Config file path (default: %s)\n", config.EnvConfigPath, config.DefaultPath())
	fmt.Println("  WAYPOINTS_HOLDER   Default for --holder")
	fmt.Println("  WAYPOINTS_TOKEN    Default for --token")
	fmt.Println()
}

// app bundles the long-lived pieces a holder command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLiteStore
	manager  *waypoints.Manager
	recorder *audit.Recorder
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openApp opens the store, the manager and the audit recorder.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	st, err := store.NewSQLiteStore(cfg.Database.Path, store.Options{
		Driver:       cfg.Database.Driver,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	mgr, err := waypoints.NewManager(st, waypoints.Options{
		FolderDeletePolicy: store.CascadePolicy(cfg.Holders.FolderDeletePolicy),
		Logger:             logger,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating manager: %w", err)
	}

	rec := audit.NewRecorder(st, logger)
	if err := rec.Attach(ctx, mgr.Bus()); err != nil {
		mgr.Close()
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: st, manager: mgr, recorder: rec}, nil
}

func (a *app) Close() {
	a.recorder.Detach()
	if err := a.manager.Close(); err != nil {
		a.logger.Warn("closing manager", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// authenticate verifies --token or WAYPOINTS_TOKEN and attaches the
// caller's AuthContext to ctx. Without a token ctx is returned unchanged.
func (a *app) authenticate(ctx context.Context, p parsedArgs) (context.Context, error) {
	token := p.flag("token", os.Getenv("WAYPOINTS_TOKEN"))
	if token == "" {
		return ctx, nil
	}
	if a.cfg.Auth.TokenSecret == "" {
		return ctx, fmt.Errorf("--token given but auth.token_secret is not configured")
	}
	claims, err := auth.NewJWTVerifier([]byte(a.cfg.Auth.TokenSecret)).Verify(token)
	if err != nil {
		return ctx, fmt.Errorf("verifying token: %w", err)
	}
	a.logger.Debug("token verified", "subject", claims.Subject, "caps", claims.Capabilities.Tokens())
	return auth.WithAuth(ctx, &auth.AuthContext{Subject: claims.Subject, Capabilities: claims.Capabilities}), nil
}

// callerCapabilities returns the AuthContext attached to ctx, or nil when
// the command runs without a token and therefore sees everything.
func callerCapabilities(ctx context.Context) waypoints.Capabilities {
	if ac := auth.FromContext(ctx); ac != nil {
		return ac
	}
	return nil
}

// callerName is the token subject, or fallback when no token was given.
func callerName(ctx context.Context, fallback string) string {
	if ac := auth.FromContext(ctx); ac != nil && ac.Subject != "" {
		return ac.Subject
	}
	return fallback
}

func runHolderCommand(ctx context.Context, cmd string, args []string) error {
	p, err := parseArgs(args, "html")
	if err != nil {
		return err
	}
	sel, err := parseHolder(p.flag("holder", envOr("WAYPOINTS_HOLDER", "global")))
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, err = a.authenticate(ctx, p)
	if err != nil {
		return err
	}

	h, err := a.manager.Holder(ctx, sel.Type, sel.Owner).Await(ctx)
	if err != nil {
		return err
	}

	switch cmd {
	case "folders":
		return cmdFolders(ctx, h)
	case "list":
		return cmdList(ctx, h, p)
	case "create-folder":
		return cmdCreateFolder(ctx, h, p)
	case "create":
		return cmdCreate(ctx, h, p)
	case "move":
		return cmdMove(ctx, h, p)
	case "rm":
		return cmdRemove(ctx, h, p)
	case "rm-folder":
		return a.cmdRemoveFolder(ctx, h, p)
	case "search":
		return cmdSearch(ctx, h, p)
	case "count":
		return cmdCount(ctx, h)
	case "export":
		return cmdExport(ctx, h, p)
	case "audit":
		return a.cmdAudit(ctx, h, p)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
