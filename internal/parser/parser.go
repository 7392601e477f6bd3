// Package parser turns the free-text output of the transfer utility into
// structured records. The utility has two response shapes: XML-like status
// tags for account/handshake commands, and bracket-delimited rows for
// directory listings. The caller decides which shape it expects; the parser
// never sniffs content.
package parser

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
)

// Entry is one row of a remote directory listing.
type Entry struct {
	Size int64
	Name string
}

// Status holds the attributes of the first <tree> element found in a
// command's output.
type Status struct {
	attrs map[string]string
}

// Attr returns the named attribute, or the empty string when absent.
func (s *Status) Attr(name string) string {
	return s.attrs[name]
}

var tagPattern = regexp.MustCompile(`<[^<>]+>`)

// ParseStatus extracts every tag-like substring from raw, synthesizes a
// well-formed document out of them and returns the attributes of the first
// <tree> element. It returns nil when no usable status tag is present;
// callers must treat nil as "no data", not as a malformed structure.
func ParseStatus(raw string) *Status {
	tags := tagPattern.FindAllString(raw, -1)
	if len(tags) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("<response>")
	for _, tag := range tags {
		if norm, ok := normalizeTag(tag); ok {
			b.WriteString(norm)
		}
	}
	b.WriteString("</response>")

	var doc struct {
		Trees []struct {
			Attrs []xml.Attr `xml:",any,attr"`
		} `xml:"tree"`
	}
	if err := xml.Unmarshal([]byte(b.String()), &doc); err != nil {
		return nil
	}
	if len(doc.Trees) == 0 {
		return nil
	}

	attrs := make(map[string]string, len(doc.Trees[0].Attrs))
	for _, a := range doc.Trees[0].Attrs {
		attrs[a.Name.Local] = a.Value
	}
	return &Status{attrs: attrs}
}

// normalizeTag rewrites an opening tag as self-closing so the synthesized
// document stays well-formed. The utility emits bare `<tree ...>` tags with
// no closing counterpart; closing tags and processing instructions are
// dropped entirely.
func normalizeTag(tag string) (string, bool) {
	if strings.HasPrefix(tag, "</") || strings.HasPrefix(tag, "<?") || strings.HasPrefix(tag, "<!") {
		return "", false
	}
	if strings.HasSuffix(tag, "/>") {
		return tag, true
	}
	return strings.TrimSuffix(tag, ">") + "/>", true
}

// ParseListing turns raw listing output into entries. Only lines beginning
// with an opening bracket carry data; the utility interleaves progress and
// log lines with the rows, and those are skipped silently. Within a row the
// first bracketed column is the byte size and the last one is the entry
// name; blank columns in between are dropped.
func ParseListing(raw string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "[") {
			continue
		}

		var cols []string
		for _, col := range strings.Split(line, "[") {
			col = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(col), "]"))
			if col != "" {
				cols = append(cols, col)
			}
		}
		if len(cols) < 2 {
			continue
		}

		size, err := strconv.ParseInt(cols[0], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Size: size, Name: cols[len(cols)-1]})
	}
	return entries
}
