// ABOUTME: Search over a holder's folders and waypoints
// ABOUTME: Case-insensitive substring filter with folder/name qualified waypoint queries

package waypoints

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// QualifierSeparator splits a waypoint query into folder and name parts.
const QualifierSeparator = "/"

// Span is a half-open byte range [Start, End) of a matched substring.
type Span struct {
	Start, End int
}

// Empty reports whether the span covers nothing.
func (s Span) Empty() bool { return s.End <= s.Start }

// SearchResult is one match. NameSpan locates the query in the entity name
// and FolderSpan locates the folder part of a qualified waypoint query in
// the folder name. Spans are empty when the respective query part was.
type SearchResult[T any] struct {
	Value      T
	NameSpan   Span
	FolderSpan Span
}

// SearchFolders returns the folders whose name contains query, ignoring
// case the way name uniqueness does, in listing order. Folders carry no visibility token, so caps does
// not narrow the result.
func (h *Holder) SearchFolders(ctx context.Context, query string, caps Capabilities) *Task[[]SearchResult[*Folder]] {
	return Go(ctx, func(ctx context.Context) ([]SearchResult[*Folder], error) {
		folders, err := h.listFolders(ctx)
		if err != nil {
			return nil, err
		}
		return matchFolders(folders, query), nil
	})
}

// SearchWaypoints returns the waypoints visible to caps whose name contains
// query, ignoring case, in listing order. Waypoints and folder names are
// read from one snapshot. A query of the form
// "folder/name" also requires the containing folder's name to contain the
// folder part; top-level waypoints only match when that part is empty.
func (h *Holder) SearchWaypoints(ctx context.Context, query string, caps Capabilities) *Task[[]SearchResult[*Waypoint]] {
	return Go(ctx, func(ctx context.Context) ([]SearchResult[*Waypoint], error) {
		folders, recs, err := h.m.store.ListHolderContents(ctx, h.id)
		if err != nil {
			return nil, classify(ctx, "search waypoints", err)
		}
		folderNames := make(map[string]string, len(folders))
		for _, f := range folders {
			folderNames[f.ID] = f.Name
		}
		return matchWaypoints(h.visibleWaypoints(recs, caps), folderNames, query), nil
	})
}

func matchFolders(folders []*Folder, query string) []SearchResult[*Folder] {
	results := make([]SearchResult[*Folder], 0, len(folders))
	for _, f := range folders {
		span, ok := matchFold(f.Name(), query)
		if !ok {
			continue
		}
		results = append(results, SearchResult[*Folder]{Value: f, NameSpan: span})
	}
	return results
}

// matchWaypoints filters waypoints, already visibility filtered and in
// listing order. folderNames maps folder ID to name and is only consulted
// for qualified queries.
func matchWaypoints(waypoints []*Waypoint, folderNames map[string]string, query string) []SearchResult[*Waypoint] {
	folderPart, namePart, qualified := strings.Cut(query, QualifierSeparator)
	if !qualified {
		namePart = query
	}

	results := make([]SearchResult[*Waypoint], 0, len(waypoints))
	for _, w := range waypoints {
		var folderSpan Span
		if qualified {
			folderID, inFolder := w.FolderID()
			if !inFolder {
				if folderPart != "" {
					continue
				}
			} else {
				span, ok := matchFold(folderNames[folderID], folderPart)
				if !ok {
					continue
				}
				folderSpan = span
			}
		}

		nameSpan, ok := matchFold(w.Name(), namePart)
		if !ok {
			continue
		}
		results = append(results, SearchResult[*Waypoint]{Value: w, NameSpan: nameSpan, FolderSpan: folderSpan})
	}
	return results
}

// matchFold reports whether s contains sub under full Unicode case folding,
// the folding behind name uniqueness, so "strasse" finds "Straße". The span
// comes from simple folding when that finds the match. Otherwise it is the
// shortest run of whole runes of s whose folding contains sub.
func matchFold(s, sub string) (Span, bool) {
	if span, ok := indexFold(s, sub); ok {
		return span, true
	}
	folded := fold(sub)
	if !strings.Contains(fold(s), folded) {
		return Span{}, false
	}

	end := len(s)
	for j := 0; j < len(s); {
		_, size := utf8.DecodeRuneInString(s[j:])
		j += size
		if strings.Contains(fold(s[:j]), folded) {
			end = j
			break
		}
	}
	start := 0
	for i := 0; i < end; {
		_, size := utf8.DecodeRuneInString(s[i:])
		if !strings.Contains(fold(s[i+size:end]), folded) {
			start = i
			break
		}
		i += size
	}
	return Span{Start: start, End: end}, true
}

// fold applies full case folding. A Caser holds state, so each call gets
// its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// indexFold finds the first occurrence of sub in s under simple Unicode case
// folding. The empty sub matches at the start with an empty span.
func indexFold(s, sub string) (Span, bool) {
	if sub == "" {
		return Span{}, true
	}
	for i := 0; i < len(s); {
		if n, ok := prefixFold(s[i:], sub); ok {
			return Span{Start: i, End: i + n}, true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return Span{}, false
}

// prefixFold reports whether s starts with prefix ignoring case, and how
// many bytes of s the match covers.
func prefixFold(s, prefix string) (int, bool) {
	n := 0
	for prefix != "" {
		if s == "" {
			return 0, false
		}
		sr, ssize := utf8.DecodeRuneInString(s)
		pr, psize := utf8.DecodeRuneInString(prefix)
		if !equalFoldRune(sr, pr) {
			return 0, false
		}
		s, prefix = s[ssize:], prefix[psize:]
		n += ssize
	}
	return n, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
