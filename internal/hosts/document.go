// Package hosts parses, reconciles and serializes hosts files.
//
// A hosts file is kept as an ordered list of lines. Lines written by hostsync
// carry a marker comment and are parsed into structured entries; every other
// line is kept verbatim so that serializing an unmodified document reproduces
// the input exactly.
package hosts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// markerBase is the comment text that identifies managed entries.
const markerBase = "Updated by script"

// ErrMalformedEntry is wrapped by ParseError.
var ErrMalformedEntry = errors.New("malformed managed entry")

// entryPattern splits a managed line into address, hostnames and comment.
// The hostnames block runs up to the first '#'.
var entryPattern = regexp.MustCompile(`^\s*([^\s#]+)\s+([^#]+)#(.*)$`)

// Marker returns the comment marker for zone.
// An empty zone yields the global marker shared by all managed entries.
func Marker(zone string) string {
	if zone == "" {
		return markerBase
	}
	return markerBase + " for " + zone
}

// Entry is a managed hosts entry.
type Entry struct {
	Address   string
	Hostnames []string
	Comment   string
}

// String renders the entry in hosts file format.
func (e *Entry) String() string {
	return e.Address + "\t" + strings.Join(e.Hostnames, " ") + "\t# " + e.Comment
}

// InZone reports whether the entry was written for zone.
func (e *Entry) InZone(zone string) bool {
	return strings.Contains(e.Comment, Marker(zone))
}

// Line is a single line of a hosts file. When Entry is nil the line is
// opaque and Text holds it verbatim.
type Line struct {
	Text  string
	Entry *Entry
}

// Managed reports whether the line is a managed entry.
func (l Line) Managed() bool {
	return l.Entry != nil
}

// String returns the line as it appears in the file.
func (l Line) String() string {
	if l.Entry != nil {
		return l.Entry.String()
	}
	return l.Text
}

// ParseError reports a line that carries the marker but cannot be split
// into address, hostnames and comment.
type ParseError struct {
	// Line is the 1-based line number after the edge newlines are trimmed.
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, ErrMalformedEntry, e.Text)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedEntry
}

// Document is a parsed hosts file.
//
// A Document is not safe for concurrent use.
type Document struct {
	lines []Line
}

// Parse parses hosts file text into a Document.
// Leading and trailing newlines are dropped; everything else is preserved.
func Parse(text string) (*Document, error) {
	rows := strings.Split(strings.Trim(text, "\n"), "\n")

	doc := &Document{lines: make([]Line, 0, len(rows))}
	for i, row := range rows {
		if !strings.Contains(row, markerBase) || isComment(row) {
			doc.lines = append(doc.lines, Line{Text: row})
			continue
		}

		entry, err := parseEntry(row)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Text: row}
		}
		doc.lines = append(doc.lines, Line{Entry: entry})
	}

	return doc, nil
}

func parseEntry(row string) (*Entry, error) {
	m := entryPattern.FindStringSubmatch(row)
	if m == nil {
		return nil, ErrMalformedEntry
	}

	e := &Entry{
		Address:   m[1],
		Hostnames: strings.Fields(m[2]),
		Comment:   strings.TrimSpace(m[3]),
	}
	if len(e.Hostnames) == 0 || e.Comment == "" {
		return nil, ErrMalformedEntry
	}
	return e, nil
}

// isComment reports whether row is a full-line comment. Comments are never
// managed, even when they mention the marker.
func isComment(row string) bool {
	return strings.HasPrefix(strings.TrimLeft(row, " \t"), "#")
}

// Lines returns a copy of the document's lines. Entries are copied as well,
// so changing the result never changes the document.
func (d *Document) Lines() []Line {
	out := make([]Line, len(d.lines))
	for i, l := range d.lines {
		if l.Entry != nil {
			e := *l.Entry
			e.Hostnames = append([]string(nil), l.Entry.Hostnames...)
			l.Entry = &e
		}
		out[i] = l
	}
	return out
}

// Len returns the number of lines.
func (d *Document) Len() int {
	return len(d.lines)
}

// Entries returns the managed entries belonging to zone, in file order.
// An empty zone returns every managed entry.
func (d *Document) Entries(zone string) []Entry {
	var entries []Entry
	for _, l := range d.lines {
		if l.Entry != nil && l.Entry.InZone(zone) {
			entries = append(entries, *l.Entry)
		}
	}
	return entries
}

// String serializes the document. No trailing newline is added.
func (d *Document) String() string {
	var b strings.Builder
	for i, l := range d.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.String())
	}
	return b.String()
}
