package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"sync"

	"github.com/sirupsen/logrus"

	"facewatch/internal/event"
	"facewatch/internal/jobs"
	"facewatch/internal/resolver"
	"facewatch/internal/track"
)

const DetectedDir = "detected"

// FrameSource samples the frames of a video in order, keeping its stage
// artifacts under workDir.
type FrameSource interface {
	Sample(ctx context.Context, videoPath, workDir string, fn func(idx int, frame image.Image) error) (int, error)
}

type JobStore interface {
	Put(job *jobs.Job) error
	Update(id string, fn func(job *jobs.Job)) (*jobs.Job, error)
}

// CropWriter saves a track crop to path.
type CropWriter func(path string, img image.Image) error

type BatchConfig struct {
	WorkDir       string  `yaml:"workDir"`
	UploadDir     string  `yaml:"uploadDir"`
	// KeepArtifacts leaves <WorkDir>/<jobId> in place after a run. Runs never
	// remove each other's directories, so kept ones accumulate until removed
	// by hand.
	KeepArtifacts bool    `yaml:"keepArtifacts"`
	IoUThreshold  float64 `yaml:"iouThreshold"`
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		WorkDir:      "/tmp/facewatch/jobs",
		UploadDir:    "/tmp/facewatch/uploads",
		IoUThreshold: track.DefaultIoUThreshold,
	}
}

// Summary counts what one run produced.
type Summary struct {
	Frames int
	Tracks int
	Events int
}

// Batch runs uploaded videos as background jobs. All detections of a video
// fold through one tracker, then each track is resolved, persisted and
// broadcast in order.
type Batch struct {
	deps     Deps
	conf     BatchConfig
	source   FrameSource
	jobStore JobStore
	saveCrop CropWriter
	archiver Archiver
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	wg       sync.WaitGroup
	logger   *logrus.Entry
}

func NewBatch(deps Deps, conf BatchConfig, source FrameSource, jobStore JobStore,
	saveCrop CropWriter, archiver Archiver) *Batch {
	ctx, cancel := context.WithCancel(context.Background())
	return &Batch{
		deps:     deps,
		conf:     conf,
		source:   source,
		jobStore: jobStore,
		saveCrop: saveCrop,
		archiver: archiver,
		ctx:      ctx,
		cancel:   cancel,
		logger:   deps.Logger,
	}
}

// Submit records a new job and starts it in the background. It returns as
// soon as the job is recorded.
func (b *Batch) Submit(videoPath string, mode resolver.Mode) (*jobs.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ctx.Err(); err != nil {
		return nil, errors.New("batch pipeline is stopped")
	}
	job := jobs.NewJob(videoPath, string(mode))
	if err := b.jobStore.Put(job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sum, err := b.Run(b.ctx, job.Id, videoPath, mode)
		b.finish(job.Id, sum, err)
	}()
	return job, nil
}

func (b *Batch) finish(id string, sum Summary, runErr error) {
	_, err := b.jobStore.Update(id, func(j *jobs.Job) {
		j.Frames, j.Tracks, j.Events = sum.Frames, sum.Tracks, sum.Events
		if runErr != nil {
			j.Status = jobs.StatusFailed
			j.Error = runErr.Error()
			return
		}
		j.Status = jobs.StatusFinished
	})
	if err != nil {
		b.logger.WithError(err).Errorf("update job %s failed", id)
	}
}

// Run processes one video synchronously under the job's own working
// directory, which is cleaned before the run.
func (b *Batch) Run(ctx context.Context, jobId, videoPath string, mode resolver.Mode) (Summary, error) {
	logger := b.logger.WithFields(logrus.Fields{"job": jobId, "mode": mode})
	logger.Info("job started")
	defer logger.Info("job stopped")

	var sum Summary
	rep := newReporter(b.deps.Reporter, logger)
	defer rep.flush()

	workDir := path.Join(b.conf.WorkDir, jobId)
	if err := os.RemoveAll(workDir); err != nil {
		return sum, fmt.Errorf("clean work dir: %w", err)
	}
	if err := os.MkdirAll(path.Join(workDir, DetectedDir), 0755); err != nil {
		return sum, fmt.Errorf("create work dir: %w", err)
	}
	if !b.conf.KeepArtifacts {
		defer os.RemoveAll(workDir)
	}

	tracker := track.NewTracker(b.conf.IoUThreshold)
	frames, err := b.source.Sample(ctx, videoPath, workDir, func(idx int, frame image.Image) error {
		dets, err := b.deps.Detector.FindFaces(ctx, frame)
		if err != nil {
			logger.WithError(err).Warnf("detection failed on frame %d", idx)
			return nil
		}
		for _, det := range dets {
			tracker.Consider(det)
		}
		return nil
	})
	sum.Frames = frames
	if err != nil {
		return sum, fmt.Errorf("sample video: %w", err)
	}

	tracks := tracker.Tracks()
	sum.Tracks = len(tracks)
	logger.Infof("%d tracks from %d frames", len(tracks), frames)

	for i, tr := range tracks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if b.resolveTrack(ctx, logger, rep, jobId, workDir, i, tr, mode) {
			sum.Events++
		}
	}
	return sum, nil
}

// resolveTrack reports whether the track produced a persisted event.
func (b *Batch) resolveTrack(ctx context.Context, logger *logrus.Entry, rep *reporter, jobId, workDir string,
	n int, tr track.Track, mode resolver.Mode) bool {
	res := b.deps.Resolver.Resolve(ctx, mode, tr.Crop)
	ev, err := b.deps.Store.Persist(ctx, event.New(res, b.deps.Location))
	if err != nil {
		logger.WithError(err).Errorf("persist track %d failed, event dropped", n)
		return false
	}
	b.deps.Hub.Broadcast(ev)
	rep.report(ev.Result)
	logger.WithFields(logrus.Fields{"id": ev.AlertId, "type": ev.Result.Type()}).Infof("track %d resolved", n)

	b.archiveCrop(ctx, logger, jobId, workDir, n, tr)
	return true
}

func (b *Batch) archiveCrop(ctx context.Context, logger *logrus.Entry, jobId, workDir string, n int, tr track.Track) {
	if b.saveCrop == nil || tr.Crop == nil {
		return
	}
	name := fmt.Sprintf("%d.jpg", n)
	local := path.Join(workDir, DetectedDir, name)
	if err := b.saveCrop(local, tr.Crop); err != nil {
		logger.WithError(err).Warnf("save crop %d failed", n)
		return
	}
	if b.archiver == nil {
		return
	}
	if err := b.archiver.Archive(ctx, local, path.Join("jobs", jobId, DetectedDir, name)); err != nil {
		logger.WithError(err).Warnf("archive crop %d failed", n)
	}
}

// Stop refuses further submissions, cancels running jobs and waits for them
// to exit.
func (b *Batch) Stop() {
	b.mu.Lock()
	b.cancel()
	b.mu.Unlock()
	b.wg.Wait()
}

// Wait blocks until every job submitted so far has finished. Each job
// delivers its dashboard deltas before it counts as finished.
func (b *Batch) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wg.Wait()
}
