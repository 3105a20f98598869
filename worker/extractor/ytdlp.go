package extractor

import (
	"context"

	"github.com/lrstanley/go-ytdlp"
)

// Request is one yt-dlp invocation.
type Request struct {
	URL        string
	Output     string
	Format     string
	CookieFile string
	Headers    []Header
}

// Runner executes yt-dlp and returns its stderr alongside any error.
type Runner interface {
	Download(ctx context.Context, req Request) (stderr string, err error)
}

// YTDLP runs the yt-dlp binary found on PATH.
type YTDLP struct{}

func (YTDLP) Download(ctx context.Context, req Request) (string, error) {
	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		NoProgress().
		Output(req.Output).
		Format(req.Format).
		MergeOutputFormat("mp4").
		Referer("https://www.youtube.com/")

	for _, h := range req.Headers {
		dl.AddHeaders(h.Name + ":" + h.Value)
	}
	if req.CookieFile != "" {
		dl.Cookies(req.CookieFile)
	}

	res, err := dl.Run(ctx, req.URL)
	if res == nil {
		return "", err
	}
	return res.Stderr, err
}
