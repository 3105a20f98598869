package extractor

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"videoDownloader/api/models"
)

type classification struct {
	kind        models.ErrorKind
	message     string
	transient   bool
	rateLimited bool
}

type rule struct {
	pattern *regexp.Regexp
	result  classification
}

// Order matters: the first match wins, so the permanent kinds come before
// the generic network patterns that often appear in the same output.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)age[- ]restricted|confirm your age|inappropriate for some users|age verification`),
		classification{kind: models.KindAgeRestricted, message: "Video is age-restricted. Upload cookies from a signed-in account to download it."},
	},
	{
		regexp.MustCompile(`(?i)sign in to confirm|not a bot|private video|login required|members[- ]only|requires authentication|use --cookies`),
		classification{kind: models.KindLoginRequired, message: "YouTube requires sign-in for this video. Upload fresh cookies and try again."},
	},
	{
		regexp.MustCompile(`(?i)available in your country|geo[- ]?restrict|blocked it in your country|from your location|HTTP Error 403`),
		classification{kind: models.KindGeoBlocked, message: "Video is not available from the server's region."},
	},
	{
		regexp.MustCompile(`(?i)video unavailable|removed by the user|has been removed|account .* terminated|does not exist|HTTP Error 404|no longer available`),
		classification{kind: models.KindUnavailable, message: "Video is unavailable or has been removed."},
	},
	{
		regexp.MustCompile(`(?i)unsupported url|is not a valid url|no video formats found|invalid url`),
		classification{kind: models.KindInvalidURL, message: "URL does not point to a downloadable video."},
	},
	{
		regexp.MustCompile(`(?i)requested format is not available`),
		classification{kind: models.KindUnknown, message: "Requested format is not available.", transient: true},
	},
	{
		regexp.MustCompile(`(?i)HTTP Error 429|too many requests|rate[- ]limit`),
		classification{kind: models.KindNetworkTimeout, message: "Rate limited by the video host. Try again in a few minutes.", transient: true, rateLimited: true},
	},
	{
		regexp.MustCompile(`(?i)timed? ?out|connection (reset|refused|aborted)|temporary failure|name resolution|network is unreachable|HTTP Error 5\d\d|unable to download webpage|read error|incomplete read`),
		classification{kind: models.KindNetworkTimeout, message: "Network error while contacting the video host.", transient: true},
	},
}

// classify translates yt-dlp output into a failure kind. It is the only
// place where tool output text is inspected.
func classify(ctx context.Context, stderr string, err error) classification {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return classification{kind: models.KindNetworkTimeout, message: "Download timed out.", transient: true}
	}

	text := stderr
	if err != nil {
		text += "\n" + err.Error()
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.result
		}
	}
	return classification{kind: models.KindUnknown, message: "Download failed: " + lastError(stderr, err)}
}

// lastError picks the most useful diagnostic line from yt-dlp output.
func lastError(stderr string, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		return last
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}
