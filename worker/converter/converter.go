package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"videoDownloader/worker/command"
)

type Codec string

const (
	CodecHEVC Codec = "hevc"
	CodecH264 Codec = "h264"
)

type encoderSettings struct {
	encoder string
	crf     string
	extra   []string
}

var encoders = map[Codec]encoderSettings{
	CodecHEVC: {encoder: "libx265", crf: "28", extra: []string{"-tag:v", "hvc1"}},
	CodecH264: {encoder: "libx264", crf: "23", extra: []string{"-pix_fmt", "yuv420p"}},
}

// ParseCodec accepts the configured codec names.
func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case "h265", "x265":
		c = CodecHEVC
	case "avc", "x264":
		c = CodecH264
	}
	if _, ok := encoders[c]; !ok {
		return "", fmt.Errorf("unsupported codec %q", s)
	}
	return c, nil
}

type Reason string

const (
	ReasonUnsupported Reason = "unsupported"
	ReasonTimeout     Reason = "timeout"
	ReasonCrashed     Reason = "crashed"
)

// Error reports why one transcode attempt failed.
type Error struct {
	Codec  Codec
	Reason Reason
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transcode %s: %s", e.Codec, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf returns the failure reason carried by err, or ReasonCrashed.
func ReasonOf(err error) Reason {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ReasonCrashed
}

var unsupportedPattern = regexp.MustCompile(`(?i)unknown encoder|encoder .* not found|unrecognized option|codec not currently supported|no such encoder|invalid encoder`)

type Converter struct {
	runner    command.Runner
	binary    string
	outputDir string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewConverter(runner command.Runner, outputDir string, timeout time.Duration, logger *zap.Logger) *Converter {
	return &Converter{
		runner:    runner,
		binary:    "ffmpeg",
		outputDir: outputDir,
		timeout:   timeout,
		logger:    logger,
	}
}

// OutputPath is where Convert writes inputPath encoded with codec.
func (c *Converter) OutputPath(inputPath string, codec Codec) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(c.outputDir, fmt.Sprintf("%s_%s.mp4", base, codec))
}

// Convert re-encodes inputPath to an mp4 using codec and returns the output
// path. Partial output is removed on failure.
func (c *Converter) Convert(ctx context.Context, inputPath string, codec Codec) (string, error) {
	settings, ok := encoders[codec]
	if !ok {
		return "", &Error{Codec: codec, Reason: ReasonUnsupported, Detail: "no encoder configured"}
	}

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", &Error{Codec: codec, Reason: ReasonCrashed, Detail: "create output dir", Err: err}
	}
	outputPath := c.OutputPath(inputPath, codec)

	c.logger.Info("Starting conversion",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("codec", string(codec)),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-y", "-i", inputPath,
		"-c:v", settings.encoder,
		"-preset", "medium",
		"-crf", settings.crf,
	}
	args = append(args, settings.extra...)
	args = append(args,
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	)

	start := time.Now()
	_, stderr, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		os.Remove(outputPath)
		cerr := classify(ctx, codec, stderr, err)
		c.logger.Error("Conversion failed",
			zap.String("codec", string(codec)),
			zap.String("reason", string(cerr.Reason)),
			zap.String("detail", cerr.Detail),
			zap.Error(err),
		)
		return "", cerr
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		c.logger.Error("Conversion produced no output",
			zap.String("codec", string(codec)),
			zap.String("output", outputPath),
		)
		return "", &Error{Codec: codec, Reason: ReasonCrashed, Detail: "empty output", Err: err}
	}

	c.logger.Info("Conversion completed",
		zap.String("output", outputPath),
		zap.Int64("size", info.Size()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outputPath, nil
}

func classify(ctx context.Context, codec Codec, stderr []byte, err error) *Error {
	detail := lastLine(stderr)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Codec: codec, Reason: ReasonTimeout, Detail: "deadline exceeded", Err: err}
	case errors.Is(err, exec.ErrNotFound):
		return &Error{Codec: codec, Reason: ReasonUnsupported, Detail: "ffmpeg not installed", Err: err}
	case unsupportedPattern.Match(stderr):
		return &Error{Codec: codec, Reason: ReasonUnsupported, Detail: detail, Err: err}
	default:
		return &Error{Codec: codec, Reason: ReasonCrashed, Detail: detail, Err: err}
	}
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
