package render

import (
	"fmt"
	"strings"

	statepkg "github.com/kk-code-lab/rlog/internal/state"
)

// FormatStatusLeft shows where the cursor is.
func FormatStatusLeft(state *statepkg.AppState) string {
	var b strings.Builder
	b.WriteString(" ")
	b.WriteString(state.Path)
	if state.Lines > 0 {
		fmt.Fprintf(&b, "  %d/%d", state.CursorRow+1, state.Lines)
	}
	fmt.Fprintf(&b, "  @%s", FormatBytes(state.CursorOffset))
	if state.FileLength > 0 {
		fmt.Fprintf(&b, " of %s (%d%%)", FormatBytes(state.FileLength), percent(state.CursorOffset, state.FileLength))
	}
	if state.Status != "" {
		b.WriteString("  ")
		b.WriteString(state.Status)
	}
	return b.String()
}

// FormatStatusRight lists modes and settings.
func FormatStatusRight(state *statepkg.AppState) string {
	var parts []string
	if state.Searching {
		if state.SearchTotal > 0 {
			parts = append(parts, fmt.Sprintf("searching %d%%", percent(state.SearchScanned, state.SearchTotal)))
		} else {
			parts = append(parts, "searching")
		}
	}
	if state.Loading {
		parts = append(parts, "indexing")
	}
	if n := len(state.Filters); n > 0 {
		parts = append(parts, fmt.Sprintf("filters:%d", n))
	}
	if state.SearchRegex {
		parts = append(parts, "regex")
	}
	if state.Follow {
		parts = append(parts, "FOLLOW")
	}
	if state.Encoding != "" {
		parts = append(parts, state.Encoding+" "+DelimiterName(state.Delimiter))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "  ") + " "
}

// DelimiterName spells a row delimiter for humans.
func DelimiterName(delim string) string {
	switch delim {
	case "\n":
		return "LF"
	case "\r\n":
		return "CRLF"
	case "\r":
		return "CR"
	case "":
		return "?"
	}
	return fmt.Sprintf("%q", delim)
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func percent(part, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(min(part*100/total, 100))
}
