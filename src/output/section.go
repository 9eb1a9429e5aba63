package output

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const sectionWidth = 61 // inner width between │ and line end

// Status is the outcome class shown next to a row.
type Status int

const (
	StatusSkipped Status = iota
	StatusSuccess
	StatusFailed
)

// StatusOf picks StatusFailed when failed > 0, otherwise StatusSuccess.
func StatusOf(failed int) Status {
	if failed > 0 {
		return StatusFailed
	}
	return StatusSuccess
}

// Icon returns the status glyph, colored if requested.
func (s Status) Icon(color bool) string {
	var glyph, code string
	switch s {
	case StatusSuccess:
		glyph, code = "✓", "\033[32m"
	case StatusFailed:
		glyph, code = "✗", "\033[31m"
	default:
		glyph, code = "⊘", "\033[33m"
	}
	if !color {
		return glyph
	}
	return code + glyph + colorReset
}

// Section renders a box-drawing framed output section.
type Section struct {
	w     io.Writer
	color bool
}

// NewSection writes the header of a section named name. A non-zero elapsed
// is right-aligned in the header.
func NewSection(w io.Writer, name string, elapsed time.Duration, color bool) *Section {
	s := &Section{w: w, color: color}
	fmt.Fprint(w, header(name, elapsed, color))
	return s
}

// Row writes a content line inside the section frame.
func (s *Section) Row(format string, args ...any) {
	fmt.Fprintf(s.w, "    │ %s\n", fmt.Sprintf(format, args...))
}

// KV writes an aligned key → value row.
func (s *Section) KV(key, value string) {
	s.Row("%-16s→ %s", key, value)
}

// Status writes a label, the status icon and an optional detail.
func (s *Section) Status(label, detail string, st Status) {
	if detail == "" {
		s.Row("%-12s%s", label, st.Icon(s.color))
		return
	}
	s.Row("%-12s%s  %s", label, st.Icon(s.color), detail)
}

// Count writes a label with a right-aligned count and the status icon.
func (s *Section) Count(label string, n int, st Status) {
	s.Row("%-14s%6d  %s", label, n, st.Icon(s.color))
}

// Warn writes a warning row.
func (s *Section) Warn(msg string) {
	s.Row("%s %s", StatusSkipped.Icon(s.color), msg)
}

// Total writes the closing elapsed row of a summary.
func (s *Section) Total(elapsed time.Duration, st Status) {
	s.Row("%-14s%6s  %s", "total", FormatElapsed(elapsed), st.Icon(s.color))
}

// Separator writes a mid-section divider.
func (s *Section) Separator() {
	fmt.Fprintf(s.w, "    ├%s\n", strings.Repeat("─", sectionWidth))
}

// Close writes the section footer.
func (s *Section) Close() {
	fmt.Fprintf(s.w, "    └%s\n", strings.Repeat("─", sectionWidth))
}

// header renders "── Name ─────── elapsed ──" padded to the section width.
func header(name string, elapsed time.Duration, color bool) string {
	label := "── " + name + " "
	suffix := "──"
	if elapsed > 0 {
		suffix = " " + FormatElapsed(elapsed) + " ──"
	}

	// widths in runes: the frame glyphs are multi-byte
	fill := max(1, sectionWidth+4-len([]rune(label))-len([]rune(suffix)))
	line := label + strings.Repeat("─", fill) + suffix
	if color {
		line = "\033[2;36m" + line + colorReset
	}
	return "\n    " + line + "\n"
}

// KV is a key-value pair for the context block.
type KV struct {
	Key   string
	Value string
}

// ContextBlock prints key-value pairs two per line.
func ContextBlock(w io.Writer, kv []KV) {
	if len(kv) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			fmt.Fprintf(w, "    %-12s%s\n", kv[i].Key, kv[i].Value)
			break
		}
		fmt.Fprintf(w, "    %-12s%-14s%-11s%s\n", kv[i].Key, kv[i].Value, kv[i+1].Key, kv[i+1].Value)
	}
}

// FormatElapsed formats a duration for section headers and totals.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	return fmt.Sprintf("%dm%.1fs", mins, d.Seconds()-float64(mins*60))
}
