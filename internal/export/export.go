// ABOUTME: Renders a holder's folders and waypoints as Markdown or HTML
// ABOUTME: Collect snapshots the holder, Markdown and HTML write the document

package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/wordmann/waypoints/internal/waypoints"
)

// Snapshot is a point-in-time copy of one holder's contents.
type Snapshot struct {
	Holder   string // holder label, e.g. "individual:alice"
	Taken    time.Time
	Folders  []Folder
	TopLevel []Waypoint
}

// Folder is a folder and the waypoints it contains.
type Folder struct {
	Name        string
	Description string
	Icon        string
	Waypoints   []Waypoint
}

// Waypoint is the exported view of a waypoint.
type Waypoint struct {
	Name        string
	Description string
	Icon        string
	Location    waypoints.Location
	Visibility  string
}

// Collect snapshots h, keeping only the waypoints caps may see.
// A nil caps exports everything.
func Collect(ctx context.Context, h *waypoints.Holder, caps waypoints.Capabilities) (*Snapshot, error) {
	snap := &Snapshot{
		Holder: h.Label(),
		Taken:  time.Now().UTC(),
	}

	folders, err := h.ListFolders(ctx).Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	for _, f := range folders {
		wps, err := f.Waypoints(ctx, caps).Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing waypoints of folder %q: %w", f.Name(), err)
		}
		snap.Folders = append(snap.Folders, Folder{
			Name:        f.Name(),
			Description: f.Description(),
			Icon:        f.Icon(),
			Waypoints:   convert(wps),
		})
	}

	top, err := h.ListTopLevelWaypoints(ctx).Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing top-level waypoints: %w", err)
	}
	visible := top[:0]
	for _, w := range top {
		if w.VisibleTo(caps) {
			visible = append(visible, w)
		}
	}
	snap.TopLevel = convert(visible)

	return snap, nil
}

func convert(wps []*waypoints.Waypoint) []Waypoint {
	out := make([]Waypoint, 0, len(wps))
	for _, w := range wps {
		out = append(out, Waypoint{
			Name:        w.Name(),
			Description: w.Description(),
			Icon:        w.Icon(),
			Location:    w.Location(),
			Visibility:  w.Visibility(),
		})
	}
	return out
}

// Markdown writes snap as a Markdown document: one section per folder,
// then the top-level waypoints under "Unfiled".
func Markdown(w io.Writer, snap *Snapshot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Waypoints of %s\n\n", escape(snap.Holder))
	if !snap.Taken.IsZero() {
		fmt.Fprintf(&b, "_Exported %s_\n\n", snap.Taken.Format(time.RFC3339))
	}

	for _, f := range snap.Folders {
		fmt.Fprintf(&b, "## %s\n\n", heading(f.Icon, f.Name))
		if f.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", escape(f.Description))
		}
		writeWaypoints(&b, f.Waypoints)
	}

	if len(snap.TopLevel) > 0 {
		b.WriteString("## Unfiled\n\n")
		writeWaypoints(&b, snap.TopLevel)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// HTML writes snap as an HTML fragment converted from its Markdown form.
func HTML(w io.Writer, snap *Snapshot) error {
	var md bytes.Buffer
	if err := Markdown(&md, snap); err != nil {
		return err
	}
	if err := goldmark.Convert(md.Bytes(), w); err != nil {
		return fmt.Errorf("converting markdown: %w", err)
	}
	return nil
}

func writeWaypoints(b *strings.Builder, wps []Waypoint) {
	if len(wps) == 0 {
		b.WriteString("_No waypoints._\n\n")
		return
	}
	for _, wp := range wps {
		fmt.Fprintf(b, "- **%s** at `%s`", heading(wp.Icon, wp.Name), wp.Location)
		if wp.Visibility != "" {
			fmt.Fprintf(b, " (requires `%s`)", wp.Visibility)
		}
		if wp.Description != "" {
			fmt.Fprintf(b, ": %s", escape(wp.Description))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func heading(icon, name string) string {
	if icon == "" {
		return escape(name)
	}
	return escape(icon) + " " + escape(name)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"\n", " ",
)

// escape neutralises inline Markdown so user text renders literally.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}
