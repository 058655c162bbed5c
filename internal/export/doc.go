// Package export renders a holder as a Markdown or HTML document.
//
// Collect takes a Snapshot through the holder API, honouring the caller's
// capabilities, and Markdown or HTML writes it. HTML output is the goldmark
// rendering of the Markdown document.
package export
