package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"videoDownloader/api/models"
	"videoDownloader/worker/converter"
	"videoDownloader/worker/cookies"
	"videoDownloader/worker/probe"
	"videoDownloader/worker/tasklog"
)

// Job is one accepted download request.
type Job struct {
	TaskID  string
	TraceID string
	URL     string
	// Cookies is inline Netscape cookie text used for this job only.
	Cookies string
	// CookieFile is the shared cookies file, if one was uploaded.
	CookieFile string
}

type TaskStore interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, update models.TaskUpdate) (*models.Task, error)
}

type Extractor interface {
	Fetch(ctx context.Context, url, cookieFile string) (string, error)
}

type Validator interface {
	Validate(ctx context.Context, path string) (*probe.Result, error)
}

type Transcoder interface {
	Convert(ctx context.Context, path string, codec converter.Codec) (string, error)
}

type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Thumbnailer interface {
	Thumbnail(ctx context.Context, videoPath string) (string, error)
}

type ImageUploader interface {
	UploadImage(ctx context.Context, path string) (string, error)
}

type Options struct {
	PrimaryCodec  converter.Codec
	FallbackCodec converter.Codec
	// TempDir receives per-job cookie files.
	TempDir string
	// VerifyOutput probes each transcoded file before accepting it.
	VerifyOutput bool
}

const logFlushTimeout = 10 * time.Second

type Processor struct {
	tasks      TaskStore
	extractor  Extractor
	validator  Validator
	transcoder Transcoder
	uploader   Uploader
	thumbs     Thumbnailer
	images     ImageUploader
	sinks      []tasklog.Sink
	opts       Options
	logger     *zap.Logger
}

func NewProcessor(tasks TaskStore, extractor Extractor, validator Validator, transcoder Transcoder, uploader Uploader, opts Options, logger *zap.Logger) *Processor {
	if opts.PrimaryCodec == "" {
		opts.PrimaryCodec = converter.CodecHEVC
	}
	if opts.FallbackCodec == "" {
		opts.FallbackCodec = converter.CodecH264
	}
	return &Processor{
		tasks:      tasks,
		extractor:  extractor,
		validator:  validator,
		transcoder: transcoder,
		uploader:   uploader,
		opts:       opts,
		logger:     logger,
	}
}

// WithThumbnails enables the best-effort poster image step.
func (p *Processor) WithThumbnails(thumbs Thumbnailer, images ImageUploader) *Processor {
	p.thumbs = thumbs
	p.images = images
	return p
}

// WithSinks sets where per-task step logs are written.
func (p *Processor) WithSinks(sinks ...tasklog.Sink) *Processor {
	p.sinks = append(p.sinks, sinks...)
	return p
}

// run holds the state of one Process call.
type run struct {
	job    Job
	rec    *tasklog.Recorder
	logger *zap.Logger
	files  []string
}

func (r *run) track(path string) {
	if path != "" {
		r.files = append(r.files, path)
	}
}

// Process drives one job to a terminal state and returns that state. It
// never panics and never returns before the task is terminal.
func (p *Processor) Process(ctx context.Context, job Job) (status models.TaskStatus) {
	r := &run{
		job: job,
		rec: tasklog.NewRecorder(job.TaskID, job.TraceID, job.URL),
		logger: p.logger.With(
			zap.String("task_id", job.TaskID),
			zap.String("trace_id", job.TraceID),
		),
	}

	defer func() { p.finish(ctx, r, status) }()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Pipeline panicked",
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			err := models.NewFailure(models.KindUnknown, "Internal error", fmt.Errorf("panic: %v", rec))
			status = p.fail(ctx, r, "pipeline", models.ToTaskError(err, models.KindUnknown))
		}
	}()

	return p.run(ctx, r)
}

func (p *Processor) run(ctx context.Context, r *run) models.TaskStatus {
	r.logger.Info("Processing task", zap.String("url", r.job.URL))

	// downloading
	if !p.advance(ctx, r, models.StatusDownloading, "Connecting to video host...") {
		return models.StatusFailed
	}
	r.rec.Record("download_start")

	cookieFile := r.job.CookieFile
	if r.job.Cookies != "" {
		path, err := cookies.WriteTemp(p.opts.TempDir, r.job.Cookies)
		if err != nil {
			r.logger.Warn("Ignoring inline cookies", zap.Error(err))
		} else {
			r.track(path)
			cookieFile = path
		}
	}

	source, err := p.extractor.Fetch(ctx, r.job.URL, cookieFile)
	r.track(source)
	if err != nil {
		return p.fail(ctx, r, "download", models.ToTaskError(err, models.KindUnknown))
	}
	r.rec.Record("download_success", "file_path", source)

	// validating
	if !p.advance(ctx, r, models.StatusValidating, "Validating download...") {
		return models.StatusFailed
	}
	info, err := p.validator.Validate(ctx, source)
	if err != nil {
		return p.fail(ctx, r, "validate", forceKind(err, models.KindValidationFailed))
	}
	r.rec.Record("validate_success",
		"duration", info.Duration,
		"video_codec", info.VideoCodec,
		"format", info.FormatName,
	)

	// converting
	if !p.advance(ctx, r, models.StatusConverting, fmt.Sprintf("Converting video (%s)...", p.opts.PrimaryCodec)) {
		return models.StatusFailed
	}
	converted, err := p.convert(ctx, r, source)
	if err != nil {
		return p.fail(ctx, r, "convert", forceKind(err, models.KindConversionFailed))
	}

	// uploading
	if !p.advance(ctx, r, models.StatusUploading, "Uploading to cloud storage...") {
		return models.StatusFailed
	}
	r.rec.Record("upload_start")
	resultURL, err := p.uploader.Upload(ctx, converted)
	if err != nil {
		return p.fail(ctx, r, "upload", forceKind(err, models.KindUploadFailed))
	}
	if resultURL == "" {
		return p.fail(ctx, r, "upload", &models.TaskError{Kind: models.KindUploadFailed, Message: "Storage returned no URL"})
	}
	r.rec.Record("upload_success", "url", resultURL)

	thumbnailURL := p.thumbnail(ctx, r, converted)

	_, err = p.tasks.UpdateTask(ctx, r.job.TaskID, models.TaskUpdate{
		Status:          models.StatusCompleted,
		ProgressMessage: "Completed successfully!",
		ResultURL:       resultURL,
		ThumbnailURL:    thumbnailURL,
	})
	if err != nil {
		r.logger.Error("Failed to record completion", zap.Error(err))
		if status, ok := p.stored(ctx, r); ok {
			return status
		}
		return models.StatusFailed
	}

	r.rec.Record("completed")
	r.logger.Info("Task completed", zap.String("result_url", resultURL))
	return models.StatusCompleted
}

// convert tries the primary codec and, on any failure, the fallback codec
// exactly once.
func (p *Processor) convert(ctx context.Context, r *run, source string) (string, error) {
	primary, fallback := p.opts.PrimaryCodec, p.opts.FallbackCodec

	out, firstErr := p.convertWith(ctx, r, source, primary)
	if firstErr == nil {
		return out, nil
	}

	reason := converter.ReasonOf(firstErr)
	if reason == converter.ReasonUnsupported {
		r.logger.Warn("Primary codec unsupported, using fallback",
			zap.String("codec", string(primary)),
			zap.String("fallback", string(fallback)),
			zap.Error(firstErr),
		)
	} else {
		r.logger.Error("Primary codec failed, retrying with fallback",
			zap.String("codec", string(primary)),
			zap.String("reason", string(reason)),
			zap.String("fallback", string(fallback)),
			zap.Error(firstErr),
		)
	}

	msg := fmt.Sprintf("%s conversion failed, retrying with %s...", primary, fallback)
	if !p.advance(ctx, r, models.StatusConverting, msg) {
		return "", firstErr
	}

	out, secondErr := p.convertWith(ctx, r, source, fallback)
	if secondErr == nil {
		return out, nil
	}

	return "", models.NewFailure(models.KindConversionFailed,
		fmt.Sprintf("Conversion failed with %s (%s) and %s (%s)",
			primary, reason, fallback, converter.ReasonOf(secondErr)),
		errors.Join(firstErr, secondErr),
	)
}

func (p *Processor) convertWith(ctx context.Context, r *run, source string, codec converter.Codec) (string, error) {
	r.rec.Record("convert_start", "codec", string(codec))

	out, err := p.transcoder.Convert(ctx, source, codec)
	r.track(out)
	if err == nil && p.opts.VerifyOutput {
		if _, verr := p.validator.Validate(ctx, out); verr != nil {
			err = &converter.Error{Codec: codec, Reason: converter.ReasonCrashed, Detail: "output failed validation", Err: verr}
		}
	}
	if err != nil {
		r.rec.Record("convert_failed", "codec", string(codec), "reason", string(converter.ReasonOf(err)), "error", err.Error())
		return "", err
	}

	r.rec.Record("convert_success", "codec", string(codec), "file_path", out)
	return out, nil
}

// thumbnail returns the poster URL, or "" when the step is disabled or
// fails. It never affects the task outcome.
func (p *Processor) thumbnail(ctx context.Context, r *run, video string) string {
	if p.thumbs == nil || p.images == nil {
		return ""
	}

	path, err := p.thumbs.Thumbnail(ctx, video)
	r.track(path)
	if err != nil {
		r.logger.Warn("Thumbnail skipped", zap.Error(err))
		r.rec.Record("thumbnail_failed", "error", err.Error())
		return ""
	}

	url, err := p.images.UploadImage(ctx, path)
	if err != nil {
		r.logger.Warn("Thumbnail upload failed", zap.Error(err))
		r.rec.Record("thumbnail_failed", "error", err.Error())
		return ""
	}
	r.rec.Record("thumbnail_success", "url", url)
	return url
}

func (p *Processor) advance(ctx context.Context, r *run, status models.TaskStatus, message string) bool {
	_, err := p.tasks.UpdateTask(ctx, r.job.TaskID, models.TaskUpdate{
		Status:          status,
		ProgressMessage: message,
	})
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.String("stage", string(status)),
			zap.Error(err),
		)
		p.fail(ctx, r, string(status), &models.TaskError{Kind: models.KindUnknown, Message: err.Error()})
		return false
	}
	r.logger.Debug("Stage started", zap.String("stage", string(status)))
	return true
}

func (p *Processor) fail(ctx context.Context, r *run, step string, te *models.TaskError) models.TaskStatus {
	r.rec.Record(step+"_failed", "kind", string(te.Kind), "error", te.Message)
	r.logger.Warn("Task failed",
		zap.String("step", step),
		zap.String("kind", string(te.Kind)),
		zap.String("error", te.Message),
	)

	_, err := p.tasks.UpdateTask(ctx, r.job.TaskID, models.TaskUpdate{
		Status:          models.StatusFailed,
		ProgressMessage: "Failed",
		Error:           te,
	})
	if err != nil {
		r.logger.Error("Failed to record failure", zap.Error(err))
		if status, ok := p.stored(ctx, r); ok {
			return status
		}
	}
	return models.StatusFailed
}

// stored reports the registry's status when the task is already terminal,
// so Process never disagrees with what pollers see.
func (p *Processor) stored(ctx context.Context, r *run) (models.TaskStatus, bool) {
	task, err := p.tasks.GetTask(ctx, r.job.TaskID)
	if err != nil || !task.Status.IsTerminal() {
		return "", false
	}
	return task.Status, true
}

// finish removes every local file the job created and flushes the step log.
func (p *Processor) finish(ctx context.Context, r *run, status models.TaskStatus) {
	for _, path := range r.files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("Failed to remove temp file", zap.String("path", path), zap.Error(err))
		}
	}

	if len(p.sinks) == 0 {
		return
	}
	log := r.rec.Finish(string(status))
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logFlushTimeout)
	defer cancel()
	for _, sink := range p.sinks {
		if err := sink.Save(flushCtx, log); err != nil {
			r.logger.Warn("Failed to save task log", zap.Error(err))
		}
	}
}

// forceKind keeps the adapter's message but pins the stage's error kind.
func forceKind(err error, kind models.ErrorKind) *models.TaskError {
	te := models.ToTaskError(err, kind)
	te.Kind = kind
	return te
}
