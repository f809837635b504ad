package dump

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	bytesPerRow   = 16
	maxValueWidth = 48
	indent        = "  "
)

var headers = [...]string{"Offset", "Access", "Value", "Bytes", "Format"}

// String renders the dump as a text table.
func (d *Dump) String() string {
	return d.Table(TableOptions{})
}

// TableOptions tunes table rendering.
type TableOptions struct {
	// Header styles the header cells, e.g. with lipgloss in a terminal.
	Header func(string) string
	// MaxValueWidth truncates the Value column; zero selects the default.
	MaxValueWidth int
}

// Table renders the dump as a text table with one line per record and
// continuation lines for raw bytes beyond sixteen per row.
func (d *Dump) Table(opts TableOptions) string {
	maxValue := opts.MaxValueWidth
	if maxValue <= 0 {
		maxValue = maxValueWidth
	}

	var lines [][5]string
	var seps []bool
	for _, row := range d.Rows() {
		offset := strconv.Itoa(row.Offset)
		if row.Bits != nil {
			offset = indent + row.Bits.String()
		}
		access := strings.Repeat(indent, row.Depth) + row.Access
		if row.Depth == 0 {
			access = row.Path
		}
		value := runewidth.Truncate(row.Value, maxValue, "...")

		chunks := chunk(row.Raw)
		if row.Bits != nil {
			chunks = nil
		}
		first := ""
		if len(chunks) > 0 {
			first = chunks[0]
		}
		lines = append(lines, [5]string{offset, access, value, first, row.Format})
		seps = append(seps, row.Separate)

		for i := 1; i < len(chunks); i++ {
			lines = append(lines, [5]string{strconv.Itoa(row.Offset + i*bytesPerRow), "", "", chunks[i], ""})
			seps = append(seps, false)
		}
	}

	var widths [5]int
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, l := range lines {
		for i, c := range l {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	rule := ruleLine(widths)

	b.WriteString(rule)
	b.WriteByte('\n')
	b.WriteString("|")
	for i, h := range headers {
		cell := runewidth.FillRight(h, widths[i])
		if opts.Header != nil {
			cell = opts.Header(cell)
		}
		b.WriteString(" ")
		b.WriteString(cell)
		b.WriteString(" |")
	}
	b.WriteByte('\n')
	b.WriteString(rule)
	b.WriteByte('\n')

	for i, l := range lines {
		if seps[i] && i > 0 {
			b.WriteString(rule)
			b.WriteByte('\n')
		}
		b.WriteString("|")
		for j, c := range l {
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(c, widths[j]))
			b.WriteString(" |")
		}
		b.WriteByte('\n')
	}
	b.WriteString(rule)

	return b.String()
}

func ruleLine(widths [5]int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func chunk(raw []byte) []string {
	var out []string
	for len(raw) > 0 {
		n := min(len(raw), bytesPerRow)
		out = append(out, spacedHex(raw[:n]))
		raw = raw[n:]
	}
	return out
}

func spacedHex(b []byte) string {
	s := hex.EncodeToString(b)
	var out strings.Builder
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(s[i : i+2])
	}
	return out.String()
}
