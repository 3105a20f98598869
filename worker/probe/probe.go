package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"videoDownloader/api/models"
	"videoDownloader/worker/command"
)

const DefaultMinFileSize = 1024

var (
	ErrTooSmall      = errors.New("file is too small to be a video")
	ErrTextContent   = errors.New("file is a text document, not media")
	ErrNoVideoStream = errors.New("no video stream")
	ErrNoDuration    = errors.New("duration is zero")
	ErrNoFormat      = errors.New("container format not recognized")
)

// Result is the subset of ffprobe output the pipeline cares about.
type Result struct {
	Duration   float64
	FormatName string
	VideoCodec string
	Width      int
	Height     int
	AudioCodec string
}

type Validator struct {
	runner      command.Runner
	binary      string
	minFileSize int64
	timeout     time.Duration
	logger      *zap.Logger
}

func NewValidator(runner command.Runner, timeout time.Duration, logger *zap.Logger) *Validator {
	return &Validator{
		runner:      runner,
		binary:      "ffprobe",
		minFileSize: DefaultMinFileSize,
		timeout:     timeout,
		logger:      logger,
	}
}

// WithMinFileSize overrides the smallest file size accepted as a video.
func (v *Validator) WithMinFileSize(n int64) *Validator {
	if n > 0 {
		v.minFileSize = n
	}
	return v
}

// Validate confirms path holds a playable, non-empty video stream.
func (v *Validator) Validate(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, invalid("file not found", err)
	}
	if info.Size() < v.minFileSize {
		return nil, invalid(fmt.Sprintf("file is %d bytes", info.Size()), ErrTooSmall)
	}

	if mt, err := mimetype.DetectFile(path); err == nil && isText(mt) {
		v.logger.Warn("Downloaded file is text",
			zap.String("path", path),
			zap.String("mime", mt.String()),
		)
		return nil, invalid("downloaded an error page instead of a video", ErrTextContent)
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	stdout, stderr, err := v.runner.Run(ctx, v.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		v.logger.Warn("ffprobe failed",
			zap.String("path", path),
			zap.String("stderr", strings.TrimSpace(string(stderr))),
			zap.Error(err),
		)
		return nil, invalid("file is corrupt or truncated", err)
	}

	result, err := ParseJSON(stdout)
	if err != nil {
		return nil, invalid("file is not a playable video", err)
	}

	v.logger.Debug("Probe succeeded",
		zap.String("path", path),
		zap.String("format", result.FormatName),
		zap.String("video_codec", result.VideoCodec),
		zap.Float64("duration", result.Duration),
	)
	return result, nil
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// ParseJSON reads `ffprobe -print_format json` output and applies the
// playability rules.
func ParseJSON(data []byte) (*Result, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	res := &Result{FormatName: out.Format.FormatName}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if res.VideoCodec == "" {
				res.VideoCodec = s.CodecName
				res.Width = s.Width
				res.Height = s.Height
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}

	if res.VideoCodec == "" {
		return nil, ErrNoVideoStream
	}
	if res.FormatName == "" {
		return nil, ErrNoFormat
	}
	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err == nil {
			res.Duration = d
		}
	}
	if res.Duration <= 0 {
		return nil, ErrNoDuration
	}
	return res, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func invalid(msg string, err error) error {
	return models.NewFailure(models.KindValidationFailed, msg, err)
}
