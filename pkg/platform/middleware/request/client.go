package request

import (
	"strings"

	"github.com/mssola/useragent"
)

type clientInfo struct {
	Browser string
	OS      string
	Bot     bool
}

// describeClient reduces a User-Agent to coarse, log-safe fields.
func describeClient(raw string) clientInfo {
	if raw == "" {
		return clientInfo{Browser: "unknown", OS: "unknown"}
	}
	ua := useragent.New(raw)

	browser, version := ua.Browser()
	if major, _, _ := strings.Cut(version, "."); major != "" && browser != "" {
		browser += "/" + major
	}
	os := ua.OS()
	if os == "" {
		os = "unknown"
	}
	if browser == "" {
		browser = "unknown"
	}
	return clientInfo{Browser: browser, OS: os, Bot: ua.Bot()}
}
