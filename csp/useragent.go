package csp

import (
	"strconv"
	"strings"

	"github.com/mssola/useragent"
)

const (
	// firefoxChildSrcVersion is the first Firefox release that honours child-src.
	firefoxChildSrcVersion = 46
	// chromiumEdgeVersion is the first Edge release built on Chromium.
	chromiumEdgeVersion = 79
)

// VariationFor resolves the browser family of a User-Agent string.
func VariationFor(userAgent string) Variation {
	if strings.TrimSpace(userAgent) == "" {
		return Other
	}
	name, version := useragent.New(userAgent).Browser()
	switch name {
	case "Chrome", "Chromium", "Opera":
		return Chrome
	case "Firefox":
		if majorVersion(version) >= firefoxChildSrcVersion {
			return FirefoxTransitional
		}
		return Firefox
	case "Safari":
		return Safari
	case "Edge":
		if strings.Contains(userAgent, " Edg/") || majorVersion(version) >= chromiumEdgeVersion {
			return Chrome
		}
		return Edge
	}
	return Other
}

func majorVersion(version string) int {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		version = version[:i]
	}
	n, err := strconv.Atoi(version)
	if err != nil {
		return 0
	}
	return n
}
