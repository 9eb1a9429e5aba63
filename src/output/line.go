package output

import (
	"fmt"
	"io"
	"time"
)

// Level selects the marker and color of a status line.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
)

func (l Level) marker() string {
	switch l {
	case LevelSuccess:
		return "[+]"
	case LevelWarn:
		return "[!]"
	case LevelError:
		return "[-]"
	default:
		return "[i]"
	}
}

func (l Level) color() string {
	switch l {
	case LevelSuccess:
		return colorGreen
	case LevelWarn:
		return colorYellow
	case LevelError:
		return colorRed
	default:
		return colorBlue
	}
}

// FormatLine renders "2024-05-01T12:00:00 [+] msg", colored by level.
// The returned string has no trailing newline.
func FormatLine(now time.Time, level Level, msg string, color bool) string {
	ts := now.Format("2006-01-02T15:04:05")
	if !color {
		return fmt.Sprintf("%s %s %s", ts, level.marker(), msg)
	}
	return fmt.Sprintf("%s%s %s %s%s", ts, level.color(), level.marker(), msg, colorReset)
}

// Line writes one timestamped status line. Callers writing from several
// goroutines must serialize calls themselves.
func Line(w io.Writer, level Level, msg string, color bool) {
	fmt.Fprintln(w, FormatLine(time.Now(), level, msg, color))
}
