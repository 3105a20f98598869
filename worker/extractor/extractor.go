package extractor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"videoDownloader/api/models"
)

// Format selectors tried in order, one per attempt. Later attempts fall
// back to whatever the host offers.
var formatSelectors = []string{
	"best[ext=mp4][height<=720]/best[ext=mp4][height<=1080]/best[ext=mp4]/best[height<=720]/best",
	"best[ext=mp4]/best[vcodec!=none]/best",
	"best/worst",
}

var ErrNoOutput = errors.New("yt-dlp finished without producing a file")

type Config struct {
	TempDir     string
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
	Cooldown    time.Duration
}

type Extractor struct {
	runner    Runner
	cfg       Config
	cooldowns *cache.Cache
	pick      picker
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *zap.Logger
}

func New(runner Runner, cfg Config, logger *zap.Logger) *Extractor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Extractor{
		runner:    runner,
		cfg:       cfg,
		cooldowns: cache.New(cfg.Cooldown, time.Minute),
		pick:      defaultPicker,
		sleep:     sleepCtx,
		logger:    logger,
	}
}

// Fetch downloads rawURL into the temp dir and returns the local path.
// Failures are *models.Failure values carrying the classified kind.
func (e *Extractor) Fetch(ctx context.Context, rawURL, cookieFile string) (string, error) {
	host, err := checkURL(rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.cfg.TempDir, 0o755); err != nil {
		return "", models.NewFailure(models.KindUnknown, "cannot create temp dir", err)
	}

	if err := e.waitCooldown(ctx, host); err != nil {
		return "", models.NewFailure(models.KindNetworkTimeout, "Gave up waiting for rate limit to clear.", err)
	}

	token := uuid.New().String()[:8]
	output := filepath.Join(e.cfg.TempDir, token+"_temp.%(ext)s")

	var last classification
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		id := randomIdentity(e.pick)
		req := Request{
			URL:        rawURL,
			Output:     output,
			Format:     formatSelectors[min(attempt, len(formatSelectors))-1],
			CookieFile: cookieFile,
			Headers:    id.Headers,
		}

		e.logger.Info("Starting download",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.String("format", req.Format),
			zap.Bool("cookies", cookieFile != ""),
		)

		stderr, err := e.run(ctx, req)
		if err == nil {
			path, ferr := findOutput(e.cfg.TempDir, token)
			if ferr == nil {
				e.logger.Info("Download finished", zap.String("path", path), zap.Int("attempt", attempt))
				return path, nil
			}
			err = ferr
		}

		removePartials(e.cfg.TempDir, token)
		last = classify(ctx, stderr, err)
		lastErr = err

		e.logger.Warn("Download attempt failed",
			zap.Int("attempt", attempt),
			zap.String("kind", string(last.kind)),
			zap.Bool("transient", last.transient),
			zap.Error(err),
		)

		if last.rateLimited && e.cfg.Cooldown > 0 {
			e.cooldowns.Set(host, struct{}{}, e.cfg.Cooldown)
		}
		if !last.transient || attempt == e.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
			break
		}
	}

	return "", models.NewFailure(last.kind, last.message, lastErr)
}

func (e *Extractor) run(ctx context.Context, req Request) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	stderr, err := e.runner.Download(ctx, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if err == nil {
			return stderr, ctxErr
		}
		return stderr, fmt.Errorf("%w: %v", ctxErr, err)
	}
	return stderr, err
}

// backoff grows exponentially from cfg.Backoff with up to 50% jitter.
func (e *Extractor) backoff(attempt int) time.Duration {
	d := e.cfg.Backoff << (attempt - 1)
	if e.cfg.MaxBackoff > 0 && (d > e.cfg.MaxBackoff || d <= 0) {
		d = e.cfg.MaxBackoff
	}
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func (e *Extractor) waitCooldown(ctx context.Context, host string) error {
	_, until, found := e.cooldowns.GetWithExpiration(host)
	if !found {
		return nil
	}
	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}
	e.logger.Info("Host is cooling down after rate limit",
		zap.String("host", host),
		zap.Duration("wait", wait),
	)
	return e.sleep(ctx, wait)
}

func checkURL(rawURL string) (string, error) {
	invalid := func(err error) error {
		return models.NewFailure(models.KindInvalidURL, "URL is not a valid http(s) link.", err)
	}
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", invalid(errors.New("empty url"))
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", invalid(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", invalid(fmt.Errorf("unsupported url %q", trimmed))
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www.")), nil
}

// findOutput returns the largest finished file produced for token.
func findOutput(dir, token string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, token+"_temp.*"))
	if err != nil {
		return "", err
	}

	var best string
	var bestSize int64
	for _, m := range matches {
		if isPartial(m) {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = m, info.Size()
		}
	}
	if best == "" {
		return "", ErrNoOutput
	}
	return best, nil
}

func removePartials(dir, token string) {
	matches, _ := filepath.Glob(filepath.Join(dir, token+"_temp.*"))
	for _, m := range matches {
		os.Remove(m)
	}
}

func isPartial(path string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(filepath.Base(path), ".part-")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
