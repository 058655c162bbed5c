// ABOUTME: Subcommand implementations for the waypoints CLI
// ABOUTME: Each command resolves names to handles and prints a colorized table or result

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/wordmann/waypoints/internal/auth"
	"github.com/wordmann/waypoints/internal/config"
	"github.com/wordmann/waypoints/internal/export"
	"github.com/wordmann/waypoints/internal/store"
	"github.com/wordmann/waypoints/internal/waypoints"
)

// findFolder resolves a folder by name, ignoring case.
func findFolder(ctx context.Context, h *waypoints.Holder, name string) (*waypoints.Folder, error) {
	folders, err := h.ListFolders(ctx).Await(ctx)
	if err != nil {
		return nil, err
	}
	key := store.NameKey(name)
	for _, f := range folders {
		if store.NameKey(f.Name()) == key {
			return f, nil
		}
	}
	return nil, fmt.Errorf("folder %q: %w", name, waypoints.ErrNotFound)
}

// findWaypoint resolves a waypoint by name, ignoring case.
func findWaypoint(ctx context.Context, h *waypoints.Holder, name string) (*waypoints.Waypoint, error) {
	all, err := h.ListAllWaypoints(ctx).Await(ctx)
	if err != nil {
		return nil, err
	}
	key := store.NameKey(name)
	for _, w := range all {
		if store.NameKey(w.Name()) == key {
			return w, nil
		}
	}
	return nil, fmt.Errorf("waypoint %q: %w", name, waypoints.ErrNotFound)
}

// folderNames maps folder IDs to names for display.
func folderNames(ctx context.Context, h *waypoints.Holder) (map[string]string, error) {
	folders, err := h.ListFolders(ctx).Await(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(folders))
	for _, f := range folders {
		out[f.ID()] = f.Name()
	}
	return out, nil
}

func printTitle(title string) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  " + title)
	cyan.Println("  " + strings.Repeat("-", len(title)))
}

func cmdFolders(ctx context.Context, h *waypoints.Holder) error {
	folders, err := h.ListFolders(ctx).Await(ctx)
	if err != nil {
		return err
	}

	printTitle("Folders of " + h.Label())
	if len(folders) == 0 {
		fmt.Println("  (no folders)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tWAYPOINTS\tICON\tDESCRIPTION")
	fmt.Fprintln(w, "  ----\t---------\t----\t-----------")
	for _, f := range folders {
		n, err := f.CountWaypoints(ctx).Await(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s\t%d\t%s\t%s\n", f.Name(), n, f.Icon(), truncate(f.Description(), 40))
	}
	w.Flush()
	fmt.Println()
	return nil
}

func cmdList(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	caps := callerCapabilities(ctx)

	var wps []*waypoints.Waypoint
	title := "Waypoints of " + h.Label()
	if len(p.positional) > 0 {
		f, err := findFolder(ctx, h, p.positional[0])
		if err != nil {
			return err
		}
		if wps, err = f.Waypoints(ctx, caps).Await(ctx); err != nil {
			return err
		}
		title += " in " + f.Name()
	} else {
		all, err := h.ListAllWaypoints(ctx).Await(ctx)
		if err != nil {
			return err
		}
		for _, w := range all {
			if w.VisibleTo(caps) {
				wps = append(wps, w)
			}
		}
	}

	names, err := folderNames(ctx, h)
	if err != nil {
		return err
	}

	printTitle(title)
	if len(wps) == 0 {
		fmt.Println("  (no waypoints)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tFOLDER\tLOCATION\tVISIBILITY\tCREATED")
	fmt.Fprintln(w, "  ----\t------\t--------\t----------\t-------")
	for _, wp := range wps {
		folder := "-"
		if id, ok := wp.FolderID(); ok {
			folder = names[id]
		}
		visibility := wp.Visibility()
		if visibility == "" {
			visibility = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			wp.Name(), folder, wp.Location(), visibility, wp.CreatedAt().Local().Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Println()
	return nil
}

func cmdCreateFolder(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	if len(p.positional) != 1 {
		return fmt.Errorf("usage: create-folder <name> [--description d] [--icon i]")
	}

	f, err := h.CreateFolder(ctx, p.positional[0],
		waypoints.FolderDescription(p.flag("description", "")),
		waypoints.FolderIcon(p.flag("icon", "")),
	).Await(ctx)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("  Created folder %s", f.Name())
	fmt.Printf(" (%s)\n", f.ID())
	return nil
}

func cmdCreate(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	if len(p.positional) != 5 {
		return fmt.Errorf("usage: create <name> <world> <x> <y> <z> [--folder f] [--description d] [--icon i] [--visibility t] [--by creator]")
	}
	loc, err := parseLocation(p.positional[1:])
	if err != nil {
		return err
	}

	opts := []waypoints.WaypointOption{
		waypoints.WaypointDescription(p.flag("description", "")),
		waypoints.WaypointIcon(p.flag("icon", "")),
		waypoints.CreatedBy(p.flag("by", callerName(ctx, os.Getenv("USER")))),
	}
	if v := p.flag("visibility", ""); v != "" {
		if !h.SupportsVisibility() {
			return fmt.Errorf("--visibility needs a group holder, %s has no visibility gating", h.Label())
		}
		opts = append(opts, waypoints.VisibleWith(v))
	}
	if name := p.flag("folder", ""); name != "" {
		f, err := findFolder(ctx, h, name)
		if err != nil {
			return err
		}
		opts = append(opts, waypoints.InFolder(f))
	}

	wp, err := h.CreateWaypoint(ctx, p.positional[0], loc, opts...).Await(ctx)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("  Created waypoint %s", wp.Name())
	fmt.Printf(" at %s (%s)\n", wp.Location(), wp.ID())
	return nil
}

func cmdMove(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	if len(p.positional) < 1 || len(p.positional) > 2 {
		return fmt.Errorf("usage: move <waypoint> [folder]")
	}
	wp, err := findWaypoint(ctx, h, p.positional[0])
	if err != nil {
		return err
	}

	var target *waypoints.Folder
	dest := "top level"
	if len(p.positional) == 2 {
		if target, err = findFolder(ctx, h, p.positional[1]); err != nil {
			return err
		}
		dest = target.Name()
	}

	if _, err := wp.MoveTo(ctx, target).Await(ctx); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("  Moved %s to %s\n", wp.Name(), dest)
	return nil
}

func cmdRemove(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	if len(p.positional) != 1 {
		return fmt.Errorf("usage: rm <waypoint>")
	}
	wp, err := findWaypoint(ctx, h, p.positional[0])
	if err != nil {
		return err
	}
	if _, err := wp.Delete(ctx).Await(ctx); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("  Deleted waypoint %s\n", wp.Name())
	return nil
}

func (a *app) cmdRemoveFolder(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	if len(p.positional) != 1 {
		return fmt.Errorf("usage: rm-folder <folder>")
	}
	f, err := findFolder(ctx, h, p.positional[0])
	if err != nil {
		return err
	}
	n, err := f.CountWaypoints(ctx).Await(ctx)
	if err != nil {
		return err
	}
	if _, err := f.Delete(ctx).Await(ctx); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	if a.manager.FolderDeletePolicy() == store.CascadeDelete {
		green.Printf("  Deleted folder %s and %d waypoint(s)\n", f.Name(), n)
	} else {
		green.Printf("  Deleted folder %s, %d waypoint(s) moved to top level\n", f.Name(), n)
	}
	return nil
}

func cmdSearch(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	query := strings.Join(p.positional, " ")
	caps := callerCapabilities(ctx)

	hits, err := h.SearchWaypoints(ctx, query, caps).Await(ctx)
	if err != nil {
		return err
	}
	names, err := folderNames(ctx, h)
	if err != nil {
		return err
	}

	printTitle(fmt.Sprintf("Search %q in %s", query, h.Label()))
	if len(hits) == 0 {
		fmt.Println("  (no matches)")
		fmt.Println()
		return nil
	}

	for _, hit := range hits {
		line := highlight(hit.Value.Name(), hit.NameSpan)
		if id, ok := hit.Value.FolderID(); ok {
			line = highlight(names[id], hit.FolderSpan) + waypoints.QualifierSeparator + line
		}
		fmt.Printf("  %s  %s\n", line, color.HiBlackString(hit.Value.Location().String()))
	}
	fmt.Println()
	return nil
}

// highlight marks the matched span of s.
func highlight(s string, span waypoints.Span) string {
	if span.Empty() || span.End > len(s) {
		return s
	}
	match := color.New(color.FgYellow, color.Bold).Sprint(s[span.Start:span.End])
	return s[:span.Start] + match + s[span.End:]
}

func cmdCount(ctx context.Context, h *waypoints.Holder) error {
	caps := callerCapabilities(ctx)

	folders, err := h.CountFolders(ctx).Await(ctx)
	if err != nil {
		return err
	}
	total, err := h.CountWaypoints(ctx).Await(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("  %s\n", h.Label())
	fmt.Printf("  Folders:    %d\n", folders)
	fmt.Printf("  Waypoints:  %d\n", total)
	if caps != nil && h.SupportsVisibility() {
		visible, err := h.CountVisibleWaypoints(ctx, caps).Await(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("  Visible:    %d\n", visible)
	}
	return nil
}

func cmdExport(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	caps := callerCapabilities(ctx)
	snap, err := export.Collect(ctx, h, caps)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := p.flag("out", ""); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if p.bool("html") {
		return export.HTML(out, snap)
	}
	return export.Markdown(out, snap)
}

func (a *app) cmdAudit(ctx context.Context, h *waypoints.Holder, p parsedArgs) error {
	holderID := h.ID()
	filter := store.AuditFilter{HolderID: &holderID}
	if v := p.flag("limit", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		filter.Limit = n
	}
	if v := p.flag("kind", ""); v != "" {
		filter.Kind = &v
	}
	if v := p.flag("op", ""); v != "" {
		filter.Operation = &v
	}

	entries, err := a.store.ListAuditLog(ctx, filter)
	if err != nil {
		return err
	}

	printTitle("Audit log of " + h.Label())
	if len(entries) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tKIND\tOPERATION\tNAME\tID")
	fmt.Fprintln(w, "  ----\t----\t---------\t----\t--")
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("Jan 02 15:04:05"), e.Kind, e.Operation, e.EntityName, truncate(e.EntityID, 12))
	}
	w.Flush()
	fmt.Println()
	return nil
}

func runToken(args []string) error {
	p, err := parseArgs(args)
	if err != nil {
		return err
	}
	subject := p.flag("subject", "")
	if subject == "" {
		return fmt.Errorf("usage: token --subject <name> [--caps a,b] [--ttl 720h]")
	}
	ttl, err := time.ParseDuration(p.flag("ttl", "720h"))
	if err != nil {
		return fmt.Errorf("invalid ttl: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is not configured")
	}

	caps := auth.ParseSet(p.flag("caps", "")).Tokens()
	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.TokenSecret)).Generate(subject, caps, ttl)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	green.Println("  Token created successfully")
	fmt.Println()
	cyan.Println("  Subject:       " + subject)
	cyan.Println("  Capabilities:  " + strings.Join(caps, ", "))
	cyan.Println("  Expires:       " + time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  " + token)
	fmt.Println()
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("waypoints configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	defaults := config.Default()
	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaults.Database.Path)
	driver := prompt(reader, "Driver (sqlite/sqlite3)", defaults.Database.Driver)

	fmt.Println("\n--- Holder Configuration ---")
	policy := prompt(reader, "Folder delete policy (detach/delete)", defaults.Holders.FolderDeletePolicy)

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", defaults.Logging.Level)
	logFormat := prompt(reader, "Log format (text/json)", defaults.Logging.Format)

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	var cfg strings.Builder
	cfg.WriteString("# waypoints configuration\n")
	cfg.WriteString("# Generated by waypoints init\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", driver))
	cfg.WriteString(fmt.Sprintf("  busy_timeout: %q\n", defaults.Database.BusyTimeout.String()))
	cfg.WriteString("\n")

	cfg.WriteString("holders:\n")
	cfg.WriteString(fmt.Sprintf("  folder_delete_policy: %q\n", policy))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  token_secret: %q\n", secret))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Reload so a typo in a prompt is reported now rather than on first use.
	if _, err := config.Load(outputFile); err != nil {
		return err
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo create your first waypoint:")
	fmt.Println("  waypoints create Spawn overworld 0 64 0")
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
