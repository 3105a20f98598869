package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"videoDownloader/worker/command"
)

const (
	thumbnailQuality = 85

	DefaultThumbnailTimeout = time.Minute
)

// Thumbnailer grabs a poster frame from a video and scales it down.
type Thumbnailer struct {
	runner    command.Runner
	binary    string
	outputDir string
	width     int
	offset    string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewThumbnailer(runner command.Runner, outputDir string, width int, logger *zap.Logger) *Thumbnailer {
	return &Thumbnailer{
		runner:    runner,
		binary:    "ffmpeg",
		outputDir: outputDir,
		width:     width,
		offset:    "00:00:01",
		timeout:   DefaultThumbnailTimeout,
		logger:    logger,
	}
}

// WithTimeout bounds the frame grab. Zero or less disables the deadline.
func (t *Thumbnailer) WithTimeout(d time.Duration) *Thumbnailer {
	t.timeout = d
	return t
}

// Thumbnail writes a JPEG next to the converted files and returns its path.
func (t *Thumbnailer) Thumbnail(ctx context.Context, videoPath string) (string, error) {
	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	framePath := filepath.Join(t.outputDir, base+"_frame.png")
	thumbPath := filepath.Join(t.outputDir, base+"_thumb.jpg")
	defer os.Remove(framePath)

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	_, stderr, err := t.runner.Run(ctx, t.binary,
		"-y",
		"-ss", t.offset,
		"-i", videoPath,
		"-frames:v", "1",
		framePath,
	)
	if err != nil {
		t.logger.Warn("Failed to extract frame",
			zap.String("path", videoPath),
			zap.String("stderr", lastLine(stderr)),
			zap.Error(err),
		)
		return "", fmt.Errorf("extract frame: %w", err)
	}

	if err := t.resize(framePath, thumbPath); err != nil {
		os.Remove(thumbPath)
		return "", err
	}
	return thumbPath, nil
}

func (t *Thumbnailer) resize(inputPath, outputPath string) error {
	src, err := imaging.Open(inputPath)
	if err != nil {
		t.logger.Error("Failed to open frame",
			zap.String("path", inputPath),
			zap.Error(err),
		)
		return fmt.Errorf("failed to open frame: %w", err)
	}

	img := imaging.Clone(src)
	if t.width > 0 && src.Bounds().Dx() > t.width {
		t.logger.Debug("Resizing frame",
			zap.Int("from", src.Bounds().Dx()),
			zap.Int("width", t.width),
		)
		img = imaging.Resize(src, t.width, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, outputPath, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		t.logger.Error("Failed to save JPEG",
			zap.String("path", outputPath),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save JPEG: %w", err)
	}
	return nil
}
