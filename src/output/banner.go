package output

import (
	"fmt"
	"io"
	"time"
)

// BannerInfo holds the identity fields printed at the start of a run.
type BannerInfo struct {
	Version string
	SHA     string
	Branch  string
	Date    string
}

// NewBannerInfo creates a BannerInfo with today's date.
func NewBannerInfo(version, sha, branch string) BannerInfo {
	return BannerInfo{
		Version: version,
		SHA:     sha,
		Branch:  branch,
		Date:    time.Now().UTC().Format("2006-01-02"),
	}
}

// Banner prints a one-line identity header.
func Banner(w io.Writer, info BannerInfo, color bool) {
	name := "ImageFreight"
	paint := func(s string) string { return s }
	if color {
		name = "\033[1;36m" + name + colorReset
		paint = func(s string) string { return colorCyan + s + colorReset }
	}

	line := name
	if info.Version != "" {
		line += " " + paint(info.Version)
	}
	switch {
	case info.SHA != "" && info.Branch != "":
		line += "  " + paint(info.SHA) + " · " + paint(info.Branch)
	case info.SHA != "":
		line += "  " + paint(info.SHA)
	}
	if info.Date != "" {
		line += "  " + paint(info.Date)
	}

	fmt.Fprintf(w, "\n    %s\n", line)
}
