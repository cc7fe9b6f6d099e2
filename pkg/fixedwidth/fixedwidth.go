package fixedwidth

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

type Align int

const (
	Left Align = iota
	Right
)

// Field is a value rendered into exactly Width characters.
type Field struct {
	Value string
	Width int
	Align Align
}

func L(value string, width int) Field {
	return Field{Value: value, Width: width, Align: Left}
}

func R(value string, width int) Field {
	return Field{Value: value, Width: width, Align: Right}
}

// Record is anything that can be rendered as one fixed-width line.
type Record interface {
	Fields() []Field
}

type FilterFunc[T Record] func(T) bool

// Create renders every record that passes filter as a newline-terminated line.
func Create[T Record](records []T, filter FilterFunc[T]) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		if filter == nil || filter(r) {
			buf.WriteString(Line(r.Fields()...))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Line concatenates the rendered fields without a trailing newline.
func Line(fields ...Field) string {
	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(Pad(f.Value, f.Width, f.Align))
	}
	return sb.String()
}

// Pad truncates or space-pads value to width characters.
func Pad(value string, width int, align Align) string {
	n := utf8.RuneCountInString(value)
	if n > width {
		return string([]rune(value)[:width])
	}
	fill := strings.Repeat(" ", width-n)
	if align == Right {
		return fill + value
	}
	return value + fill
}

// Column locates a field by byte offsets within a line.
type Column struct {
	Name  string
	Start int
	End   int
}

// Width of the column table, i.e. the end of the last column.
func Width(cols []Column) int {
	w := 0
	for _, c := range cols {
		if c.End > w {
			w = c.End
		}
	}
	return w
}

// Split cuts line into the named columns. Columns past the end of a short
// line come back empty.
func Split(line string, cols []Column) map[string]string {
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		start, end := c.Start, c.End
		if start > len(line) {
			start = len(line)
		}
		if end > len(line) {
			end = len(line)
		}
		out[c.Name] = line[start:end]
	}
	return out
}
