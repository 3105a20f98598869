package service

import (
	"fmt"

	"go.uber.org/zap"

	"videoDownloader/worker/command"
	"videoDownloader/worker/config"
	"videoDownloader/worker/converter"
	"videoDownloader/worker/extractor"
	"videoDownloader/worker/probe"
	"videoDownloader/worker/tasklog"
	"videoDownloader/worker/uploader"
)

// Build wires a Processor to yt-dlp, ffmpeg and Cloudinary as configured.
func Build(cfg *config.Config, storage *config.StorageConfig, tasks TaskStore, logger *zap.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}
	if err := storage.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	primary, _ := converter.ParseCodec(cfg.PrimaryCodec)
	fallback, _ := converter.ParseCodec(cfg.FallbackCodec)

	cloud, err := uploader.NewFromURL(storage.CloudinaryURL, storage.Folder, storage.MaxBytes, logger)
	if err != nil {
		return nil, err
	}
	cloud.WithTimeout(storage.UploadTimeout)

	runner := command.Exec{}
	ext := extractor.New(extractor.YTDLP{}, extractor.Config{
		TempDir:     cfg.TempDir,
		MaxAttempts: cfg.ExtractMaxAttempts,
		Backoff:     cfg.ExtractBackoff,
		MaxBackoff:  cfg.ExtractMaxBackoff,
		Timeout:     cfg.ExtractTimeout,
		Cooldown:    cfg.RateLimitCooldown,
	}, logger)
	validator := probe.NewValidator(runner, cfg.ProbeTimeout, logger).WithMinFileSize(cfg.MinFileSize)
	transcoder := converter.NewConverter(runner, cfg.ConvertedDir, cfg.TranscodeTimeout, logger)

	p := NewProcessor(tasks, ext, validator, transcoder, cloud, Options{
		PrimaryCodec:  primary,
		FallbackCodec: fallback,
		TempDir:       cfg.TempDir,
		VerifyOutput:  cfg.VerifyOutput,
	}, logger)

	if cfg.ThumbnailEnabled {
		p.WithThumbnails(converter.NewThumbnailer(runner, cfg.ConvertedDir, cfg.ThumbnailWidth, logger).WithTimeout(cfg.ThumbnailTimeout), cloud)
	}
	if cfg.LogDir != "" {
		p.WithSinks(tasklog.NewFileSink(cfg.LogDir))
	}
	return p, nil
}
