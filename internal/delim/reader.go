// Package delim implements the delimited-text grammar used by the import and
// export paths. Reading and writing share one quoting rule set so that any
// document produced by the writer parses back to the same field values.
package delim

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultDelimiter is used when callers do not specify one.
const DefaultDelimiter = ','

// ErrInsufficientRows is returned by Parse when the input has fewer than two
// non-blank lines (a header line plus at least one data line).
var ErrInsufficientRows = errors.New("input must contain a header line and at least one data line")

// Options controls document parsing.
type Options struct {
	Delimiter     rune // field separator, DefaultDelimiter if zero
	SkipEmptyRows bool // drop rows whose cells are all empty
}

// Document is a parsed delimited file: the first non-blank line as headers,
// every following line as a data row.
type Document struct {
	Headers []string
	Rows    [][]string
}

// ParseRow splits a single line into fields.
//
// A field may be wrapped in double quotes; inside quotes the delimiter is
// literal and a doubled quote is an escaped literal quote. Whitespace outside
// quotes is trimmed. An unterminated quote never fails: the rest of the line,
// opening quote included, is taken literally.
func ParseRow(line string, delimiter rune) []string {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}

	var fields []string
	runes := []rune(line)
	n := len(runes)
	i := 0

	for {
		// Skip leading whitespace before the field.
		for i < n && isFieldSpace(runes[i], delimiter) {
			i++
		}

		var field string
		if i < n && runes[i] == '"' {
			field, i = scanQuoted(runes, i, delimiter)
		} else {
			start := i
			for i < n && runes[i] != delimiter {
				i++
			}
			field = strings.TrimSpace(string(runes[start:i]))
		}
		fields = append(fields, field)

		if i >= n {
			break
		}
		// runes[i] is the delimiter; consume it. A trailing delimiter means a
		// trailing empty field.
		i++
		if i == n {
			fields = append(fields, "")
			break
		}
	}

	return fields
}

// scanQuoted consumes a quoted field starting at the opening quote.
// It returns the field value and the index of the next delimiter (or end of
// line). If the quote is never closed the remainder of the line is returned
// literally, including the opening quote.
func scanQuoted(runes []rune, start int, delimiter rune) (string, int) {
	n := len(runes)
	var b strings.Builder
	i := start + 1

	for i < n {
		if runes[i] == '"' {
			if i+1 < n && runes[i+1] == '"' {
				b.WriteRune('"')
				i += 2
				continue
			}
			// Closing quote. Skip trailing whitespace up to the delimiter;
			// stray characters after the quote are appended literally.
			i++
			for i < n && runes[i] != delimiter {
				if !isFieldSpace(runes[i], delimiter) {
					b.WriteRune(runes[i])
				}
				i++
			}
			return b.String(), i
		}
		b.WriteRune(runes[i])
		i++
	}

	// Unterminated quote: lenient fallback to literal text.
	return strings.TrimSpace(string(runes[start:n])), n
}

// Parse tokenizes a whole document. Line breaks inside quoted fields are
// literal, so a row may span multiple physical lines. Blank lines are ignored
// when locating the header; data rows of all-empty cells are dropped when
// opts.SkipEmptyRows is set.
func Parse(text string, opts Options) (*Document, error) {
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}

	var lines []string
	for _, logical := range splitRecords(text) {
		if strings.TrimSpace(logical) == "" {
			continue
		}
		lines = append(lines, logical)
	}

	if len(lines) < 2 {
		return nil, ErrInsufficientRows
	}

	doc := &Document{Headers: ParseRow(lines[0], delimiter)}
	for _, line := range lines[1:] {
		row := ParseRow(line, delimiter)
		if opts.SkipEmptyRows && isEmptyRow(row) {
			continue
		}
		doc.Rows = append(doc.Rows, row)
	}

	return doc, nil
}

// splitRecords splits text into logical records, treating newlines inside
// quoted fields as literal content. Quote state toggles on each quote
// character; an escaped quote toggles twice and cancels out.
func splitRecords(text string) []string {
	var records []string
	var b strings.Builder
	inQuotes := false

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case '\r':
			if inQuotes {
				b.WriteRune(r)
			}
			// Outside quotes, \r is consumed as part of the line break.
		case '\n':
			if inQuotes {
				b.WriteRune(r)
			} else {
				records = append(records, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		records = append(records, b.String())
	}

	return records
}

// SanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// character so downstream tokenizing never sees undecodable input.
func SanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// isFieldSpace reports whether r is trimmable whitespace outside quotes.
// The delimiter is never trimmed, even when it is itself a space-like rune
// such as tab.
func isFieldSpace(r, delimiter rune) bool {
	if r == delimiter {
		return false
	}
	return r == ' ' || r == '\t'
}
