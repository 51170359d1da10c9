package delim

import "strings"

// FormatField renders one field, quoting only when required: when the value
// contains the delimiter, a quote, a line break, or leading/trailing
// whitespace that the reader would otherwise trim away. Internal quotes are
// doubled, the exact inverse of the reader's unescaping.
func FormatField(field string, delimiter rune) string {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}

	if !needsQuoting(field, delimiter) {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// FormatRow renders a row of fields joined by the delimiter.
func FormatRow(fields []string, delimiter rune) string {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = FormatField(f, delimiter)
	}
	return strings.Join(parts, string(delimiter))
}

// FormatRows renders multiple rows separated by newlines, with a trailing
// newline so the output is a well-formed text file.
func FormatRows(rows [][]string, delimiter rune) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(FormatRow(row, delimiter))
		b.WriteByte('\n')
	}
	return b.String()
}

func needsQuoting(field string, delimiter rune) bool {
	if field == "" {
		return false
	}
	if strings.ContainsAny(field, "\"\n\r") || strings.ContainsRune(field, delimiter) {
		return true
	}
	// The reader trims whitespace outside quotes, so padded values must be
	// quoted to round-trip.
	return field != strings.TrimSpace(field)
}
