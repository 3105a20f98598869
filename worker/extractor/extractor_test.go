package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"videoDownloader/api/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []Request
	fn       func(n int, req Request) (string, error)
}

func (f *fakeRunner) Download(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()
	return f.fn(n, req)
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// writeOutput mimics yt-dlp expanding the output template.
func writeOutput(t *testing.T, req Request, ext string, size int) {
	t.Helper()
	path := strings.Replace(req.Output, "%(ext)s", ext, 1)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newTestExtractor(t *testing.T, runner Runner) (*Extractor, *[]time.Duration) {
	e := New(runner, Config{
		TempDir:     t.TempDir(),
		MaxAttempts: 3,
		Backoff:     time.Second,
		MaxBackoff:  10 * time.Second,
		Cooldown:    time.Minute,
	}, zaptest.NewLogger(t))

	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	e.pick = func(n int) int { return 0 }
	return e, &slept
}

const videoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestExtractor_Fetch_Success(t *testing.T) {
	runner := &fakeRunner{}
	runner.fn = func(n int, req Request) (string, error) {
		writeOutput(t, req, "mp4", 4096)
		writeOutput(t, req, "mp4.part", 10)
		return "", nil
	}
	e, slept := newTestExtractor(t, runner)

	path, err := e.Fetch(context.Background(), videoURL, "/tmp/cookies.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_temp.mp4"), path)
	assert.Empty(t, *slept)

	req := runner.requests[0]
	assert.Equal(t, "/tmp/cookies.txt", req.CookieFile)
	assert.Equal(t, formatSelectors[0], req.Format)
	assert.Contains(t, req.Headers, Header{"User-Agent", userAgents[0]})
}

func TestExtractor_Fetch_PermanentFailureIsNotRetried(t *testing.T) {
	tests := []struct {
		stderr string
		want   models.ErrorKind
	}{
		{"ERROR: [youtube] abc: Sign in to confirm your age. This video may be inappropriate for some users.", models.KindAgeRestricted},
		{"ERROR: [youtube] abc: Sign in to confirm you're not a bot", models.KindLoginRequired},
		{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access", models.KindLoginRequired},
		{"ERROR: [youtube] abc: The uploader has not made this video available in your country", models.KindGeoBlocked},
		{"ERROR: [youtube] abc: Video unavailable. This video has been removed by the uploader", models.KindUnavailable},
		{"ERROR: Unsupported URL: https://example.com/page", models.KindInvalidURL},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			runner := &fakeRunner{fn: func(n int, req Request) (string, error) {
				return tt.stderr, errors.New("exit status 1")
			}}
			e, slept := newTestExtractor(t, runner)

			_, err := e.Fetch(context.Background(), videoURL, "")
			require.Error(t, err)
			assert.Equal(t, tt.want, models.KindOf(err))
			assert.Equal(t, 1, runner.calls())
			assert.Empty(t, *slept)
		})
	}
}

func TestExtractor_Fetch_RetriesTransientFailures(t *testing.T) {
	runner := &fakeRunner{}
	runner.fn = func(n int, req Request) (string, error) {
		if n == 1 {
			writeOutput(t, req, "mp4.part", 100)
			return "ERROR: Unable to download webpage: <urlopen error [Errno 104] Connection reset by peer>", errors.New("exit status 1")
		}
		writeOutput(t, req, "webm", 2048)
		return "", nil
	}
	e, slept := newTestExtractor(t, runner)

	path, err := e.Fetch(context.Background(), videoURL, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_temp.webm"))
	assert.Equal(t, 2, runner.calls())
	require.Len(t, *slept, 1)
	assert.GreaterOrEqual(t, (*slept)[0], time.Second)

	assert.NotEqual(t, runner.requests[0].Format, runner.requests[1].Format)

	partial := strings.Replace(runner.requests[0].Output, "%(ext)s", "mp4.part", 1)
	_, statErr := os.Stat(partial)
	assert.True(t, os.IsNotExist(statErr), "partial download should be removed between attempts")
}

func TestExtractor_Fetch_GivesUpAfterMaxAttempts(t *testing.T) {
	runner := &fakeRunner{fn: func(n int, req Request) (string, error) {
		return "ERROR: Read timed out.", errors.New("exit status 1")
	}}
	e, slept := newTestExtractor(t, runner)

	_, err := e.Fetch(context.Background(), videoURL, "")
	assert.Equal(t, models.KindNetworkTimeout, models.KindOf(err))
	assert.Equal(t, 3, runner.calls())
	assert.Len(t, *slept, 2)
}

func TestExtractor_Fetch_FormatUnavailableTriesNextSelector(t *testing.T) {
	runner := &fakeRunner{fn: func(n int, req Request) (string, error) {
		return "ERROR: [youtube] abc: Requested format is not available", errors.New("exit status 1")
	}}
	e, _ := newTestExtractor(t, runner)

	_, err := e.Fetch(context.Background(), videoURL, "")
	require.Error(t, err)
	assert.Equal(t, models.KindUnknown, models.KindOf(err))

	te := models.ToTaskError(err, models.KindUnknown)
	assert.Contains(t, te.Message, "exit status 1")

	require.Equal(t, 3, runner.calls())
	for i, req := range runner.requests {
		assert.Equal(t, formatSelectors[i], req.Format)
	}
}

func TestExtractor_Fetch_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "   ", "not a url", "ftp://example.com/video", "https://"} {
		runner := &fakeRunner{fn: func(n int, req Request) (string, error) { return "", nil }}
		e, _ := newTestExtractor(t, runner)

		_, err := e.Fetch(context.Background(), u, "")
		assert.Equal(t, models.KindInvalidURL, models.KindOf(err), "url %q", u)
		assert.Zero(t, runner.calls())
	}
}

func TestExtractor_Fetch_NoOutputFile(t *testing.T) {
	runner := &fakeRunner{fn: func(n int, req Request) (string, error) { return "", nil }}
	e, _ := newTestExtractor(t, runner)

	_, err := e.Fetch(context.Background(), videoURL, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoOutput)
	assert.Equal(t, 1, runner.calls())
}

func TestExtractor_Fetch_RateLimitCoolsDownHost(t *testing.T) {
	runner := &fakeRunner{}
	runner.fn = func(n int, req Request) (string, error) {
		if n == 1 {
			return "ERROR: [youtube] abc: HTTP Error 429: Too Many Requests", errors.New("exit status 1")
		}
		writeOutput(t, req, "mp4", 2048)
		return "", nil
	}
	e, _ := newTestExtractor(t, runner)
	e.cfg.MaxAttempts = 1

	_, err := e.Fetch(context.Background(), videoURL, "")
	assert.Equal(t, models.KindNetworkTimeout, models.KindOf(err))

	var waited []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	_, err = e.Fetch(context.Background(), "https://youtube.com/watch?v=other", "")
	require.NoError(t, err)
	require.Len(t, waited, 1)
	assert.Greater(t, waited[0], 50*time.Second)
	assert.LessOrEqual(t, waited[0], time.Minute)
}

func TestExtractor_Fetch_AttemptTimeout(t *testing.T) {
	runner := &fakeRunner{fn: func(n int, req Request) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "", errors.New("signal: killed")
	}}
	e, _ := newTestExtractor(t, runner)
	e.cfg.MaxAttempts = 1
	e.cfg.Timeout = 5 * time.Millisecond

	_, err := e.Fetch(context.Background(), videoURL, "")
	assert.Equal(t, models.KindNetworkTimeout, models.KindOf(err))
}

func TestExtractor_Backoff(t *testing.T) {
	e, _ := newTestExtractor(t, &fakeRunner{})

	for attempt := 1; attempt <= 6; attempt++ {
		d := e.backoff(attempt)
		base := time.Second << (attempt - 1)
		if base > 10*time.Second {
			base = 10 * time.Second
		}
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestRandomIdentity(t *testing.T) {
	chrome := randomIdentity(func(n int) int { return 0 })
	assert.Contains(t, chrome.Headers, Header{"Sec-CH-UA-Platform", `"Windows"`})

	firefox := randomIdentity(func(n int) int {
		if n == len(userAgents) {
			return 3
		}
		return 0
	})
	for _, h := range firefox.Headers {
		assert.False(t, strings.HasPrefix(h.Name, "Sec-CH-UA"), "firefox must not send client hints")
	}
}

func TestClassify_Unknown(t *testing.T) {
	c := classify(context.Background(), "WARNING: something\nERROR: postprocessing: ffmpeg exited with code 1", errors.New("exit status 1"))
	assert.Equal(t, models.KindUnknown, c.kind)
	assert.False(t, c.transient)
	assert.Contains(t, c.message, "ffmpeg exited with code 1")
}

func TestFindOutput_PicksLargest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tok_temp.f137.mp4"), make([]byte, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tok_temp.mp4"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tok_temp.mp4.part"), make([]byte, 1000), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other_temp.mp4"), make([]byte, 5000), 0o644))

	got, err := findOutput(dir, "tok")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tok_temp.mp4"), got)
}
