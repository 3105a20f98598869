package extractor

import (
	"math/rand/v2"
	"strings"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.8",
	"en-GB,en;q=0.9",
	"en-CA,en;q=0.9",
	"en-AU,en;q=0.9",
}

// Header is one extra HTTP header passed to yt-dlp.
type Header struct {
	Name  string
	Value string
}

// identity is the client fingerprint used for one attempt.
type identity struct {
	UserAgent string
	Headers   []Header
}

type picker func(n int) int

func randomIdentity(pick picker) identity {
	ua := userAgents[pick(len(userAgents))]
	headers := []Header{
		{"User-Agent", ua},
		{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		{"Accept-Language", acceptLanguages[pick(len(acceptLanguages))]},
		{"DNT", "1"},
		{"Sec-Fetch-Dest", "document"},
		{"Sec-Fetch-Mode", "navigate"},
		{"Sec-Fetch-Site", "none"},
		{"Sec-Fetch-User", "?1"},
		{"Upgrade-Insecure-Requests", "1"},
	}

	if brand, platform, ok := clientHints(ua); ok {
		headers = append(headers,
			Header{"Sec-CH-UA", brand},
			Header{"Sec-CH-UA-Mobile", "?0"},
			Header{"Sec-CH-UA-Platform", platform},
		)
	}
	return identity{UserAgent: ua, Headers: headers}
}

// clientHints returns Sec-CH-UA values for Chromium based agents. Firefox
// and Safari do not send them.
func clientHints(ua string) (string, string, bool) {
	if !strings.Contains(ua, "Chrome/") {
		return "", "", false
	}

	platform := `"Windows"`
	switch {
	case strings.Contains(ua, "Macintosh"):
		platform = `"macOS"`
	case strings.Contains(ua, "Linux"):
		platform = `"Linux"`
	}

	if strings.Contains(ua, "Edg/") {
		return `"Microsoft Edge";v="131", "Chromium";v="131", "Not_A Brand";v="24"`, platform, true
	}
	return `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`, platform, true
}

func defaultPicker(n int) int {
	return rand.IntN(n)
}
