package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"facewatch/internal/dashboard"
	"facewatch/internal/event"
	"facewatch/internal/face"
	"facewatch/internal/jobs"
	"facewatch/internal/resolver"
)

var testLogger = logrus.NewEntry(logrus.StandardLogger())

// boxDetector returns one detection per box, cropped from the frame.
type boxDetector struct {
	boxes []face.Box
	err   error
}

func (d *boxDetector) FindFaces(_ context.Context, frame image.Image) ([]face.Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	var dets []face.Detection
	for _, b := range d.boxes {
		crop, ok := face.Crop(frame, b)
		if !ok {
			continue
		}
		dets = append(dets, face.Detection{Crop: crop, Box: b, Confidence: 0.9})
	}
	return dets, nil
}

// positionEmbedder embeds a crop as a unit vector chosen by its left edge, so
// crops at x < 50 match subject "7" and the rest match nobody.
type positionEmbedder struct{}

func (positionEmbedder) Represent(_ context.Context, crop image.Image) ([]float32, error) {
	if crop.Bounds().Min.X < 50 {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type countingClassifier struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClassifier) Predict(context.Context, []float32) (string, float64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return "9", 0.93, nil
}

type memStore struct {
	mu     sync.Mutex
	events []event.Event
	failOn int
	calls  int
}

func (s *memStore) Persist(_ context.Context, ev event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn > 0 && s.calls == s.failOn {
		return ev, errors.New("db unavailable")
	}
	ev.AlertId = len(s.events) + 1
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type recordingHub struct {
	mu   sync.Mutex
	sent []any
}

func (h *recordingHub) Broadcast(v any) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, v)
	return 1
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

type recordingReporter struct {
	mu     sync.Mutex
	deltas []dashboard.Delta
}

func (r *recordingReporter) Report(_ context.Context, d dashboard.Delta) dashboard.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, d)
	return dashboard.Delivered()
}

func (r *recordingReporter) totals() (recognized, unrecognized int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deltas {
		recognized += d.RecognizedFaces
		unrecognized += d.UnrecognizedFaces
	}
	return
}

type fixture struct {
	deps       Deps
	detector   *boxDetector
	classifier *countingClassifier
	store      *memStore
	hub        *recordingHub
	reporter   *recordingReporter
}

func newFixture(boxes ...face.Box) *fixture {
	f := &fixture{
		detector:   &boxDetector{boxes: boxes},
		classifier: &countingClassifier{},
		store:      &memStore{},
		hub:        &recordingHub{},
		reporter:   &recordingReporter{},
	}
	emb := positionEmbedder{}
	matcher := resolver.NewMatcher(resolver.Gallery{"7": {{1, 0}}}, resolver.DefaultSimilarityThreshold, "")
	voter := resolver.NewVoter(emb, f.classifier, nil, 5, resolver.DefaultConfidenceThreshold, "", testLogger)
	f.deps = Deps{
		Detector: f.detector,
		Resolver: resolver.New(emb, matcher, voter, testLogger),
		Store:    f.store,
		Hub:      f.hub,
		Reporter: f.reporter,
		Location: "Gate A",
		Logger:   testLogger,
	}
	return f
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 200))
}

func TestLiveNoFace(t *testing.T) {
	f := newFixture()
	live := NewLive(f.deps, 1)

	ev, err := live.ProcessFrame(context.Background(), resolver.ModeML, frame())
	if err != nil {
		t.Fatal(err)
	}
	w, ok := ev.Result.(event.Warning)
	if !ok || w.Reason != event.ReasonNoFace || ev.Location != nil {
		t.Fatalf("expected no-face warning without location, got %+v", ev)
	}
	if live.Publish(ev) != 0 || f.hub.count() != 0 {
		t.Error("no-face event must not be broadcast")
	}
	if f.store.count() != 0 {
		t.Error("no-face event must not be persisted")
	}

	live.Flush()
	if _, unrecognized := f.reporter.totals(); unrecognized != 1 {
		t.Errorf("expected one unrecognized delta, got %d", unrecognized)
	}
}

func TestLiveDetectorFailureIsNoFace(t *testing.T) {
	f := newFixture()
	f.detector.err = errors.New("triton timeout")
	live := NewLive(f.deps, 1)

	ev, err := live.ProcessFrame(context.Background(), resolver.ModeMatching, frame())
	if err != nil {
		t.Fatal(err)
	}
	if w, ok := ev.Result.(event.Warning); !ok || w.Reason != event.ReasonNoFace {
		t.Errorf("detector failure should degrade to no face, got %+v", ev.Result)
	}
}

func TestLiveMatching(t *testing.T) {
	f := newFixture(face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40}, face.Box{X1: 100, Y1: 100, X2: 140, Y2: 140})
	live := NewLive(f.deps, 1)

	ev, err := live.ProcessFrame(context.Background(), resolver.ModeMatching, frame())
	if err != nil {
		t.Fatal(err)
	}
	s, ok := ev.Result.(event.Success)
	if !ok || s.Subject != "Student #7" {
		t.Fatalf("first detection should resolve to Student #7, got %+v", ev.Result)
	}
	if !ev.Persisted() || *ev.Location != "Gate A" {
		t.Errorf("event should be persisted with location, got %+v", ev)
	}
	if f.store.count() != 1 {
		t.Errorf("only the first detection is resolved per frame, got %d writes", f.store.count())
	}
	if live.Publish(ev) != 1 || f.hub.count() != 1 {
		t.Error("persisted event should be broadcast")
	}

	live.Flush()
	if recognized, _ := f.reporter.totals(); recognized != 1 {
		t.Errorf("expected one recognized delta, got %d", recognized)
	}
}

func TestLiveMLSinglePrediction(t *testing.T) {
	f := newFixture(face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40})
	live := NewLive(f.deps, 1)

	ev, err := live.ProcessFrame(context.Background(), resolver.ModeML, frame())
	if err != nil {
		t.Fatal(err)
	}
	s, ok := ev.Result.(event.Success)
	if !ok || s.Subject != "Student #9" || *s.Score.Value != 0.93 {
		t.Fatalf("unexpected ml result %+v", ev.Result)
	}
	if f.classifier.calls != 1 {
		t.Errorf("live ml should predict once, got %d", f.classifier.calls)
	}
}

func TestLivePersistFailure(t *testing.T) {
	f := newFixture(face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40})
	f.store.failOn = 1
	live := NewLive(f.deps, 1)

	if _, err := live.ProcessFrame(context.Background(), resolver.ModeMatching, frame()); err == nil {
		t.Fatal("expected persistence error")
	}
	live.Flush()
	if r, u := f.reporter.totals(); r+u != 0 {
		t.Error("dropped event should not be counted")
	}

	f.store.failOn = 0
	if _, err := live.ProcessFrame(context.Background(), resolver.ModeMatching, frame()); err != nil {
		t.Errorf("next frame should succeed, got %v", err)
	}
}

// sliceSource yields the same frame n times and records the work dir.
type sliceSource struct {
	n       int
	workDir string
}

func (s *sliceSource) Sample(ctx context.Context, _ string, workDir string, fn func(int, image.Image) error) (int, error) {
	s.workDir = workDir
	for i := 0; i < s.n; i++ {
		if err := fn(i*60, frame()); err != nil {
			return i, err
		}
	}
	return s.n, nil
}

type memArchiver struct {
	mu      sync.Mutex
	objects []string
}

func (a *memArchiver) Archive(_ context.Context, localPath, objectPath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	a.mu.Lock()
	a.objects = append(a.objects, objectPath)
	a.mu.Unlock()
	return nil
}

func writeCrop(p string, _ image.Image) error {
	return os.WriteFile(p, []byte("jpg"), 0644)
}

func newJobStore(t *testing.T) *jobs.Store {
	t.Helper()
	s, err := jobs.Open(t.TempDir(), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBatchDedupAcrossVideo(t *testing.T) {
	f := newFixture(
		face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40},
		face.Box{X1: 12, Y1: 11, X2: 41, Y2: 40},
		face.Box{X1: 100, Y1: 100, X2: 140, Y2: 140},
	)
	conf := DefaultBatchConfig()
	conf.WorkDir = t.TempDir()
	src := &sliceSource{n: 4}
	arch := &memArchiver{}
	store := newJobStore(t)
	b := NewBatch(f.deps, conf, src, store, writeCrop, arch)

	job, err := b.Submit("/videos/in.mp4", resolver.ModeMatching)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != jobs.StatusProcessing {
		t.Errorf("submitted job should be processing, got %s", job.Status)
	}
	b.Wait()

	got, err := store.Get(job.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != jobs.StatusFinished || got.Frames != 4 || got.Tracks != 2 || got.Events != 2 {
		t.Errorf("unexpected job record %+v", got)
	}

	if f.store.count() != 2 || f.hub.count() != 2 {
		t.Fatalf("expected 2 persisted and broadcast events, got %d/%d", f.store.count(), f.hub.count())
	}
	first := f.store.events[0].Result.(event.Success)
	if first.Subject != "Student #7" {
		t.Errorf("first track should resolve to Student #7, got %q", first.Subject)
	}
	if _, ok := f.store.events[1].Result.(event.Warning); !ok {
		t.Error("second track should be unknown")
	}

	if len(arch.objects) != 2 || arch.objects[0] != path.Join("jobs", job.Id, DetectedDir, "0.jpg") {
		t.Errorf("unexpected archived objects %v", arch.objects)
	}
	if _, err := os.Stat(src.workDir); !os.IsNotExist(err) {
		t.Error("work dir should be removed after the run")
	}
	if r, u := f.reporter.totals(); r != 1 || u != 1 {
		t.Errorf("unexpected dashboard totals %d/%d", r, u)
	}
}

func TestBatchPersistFailureContinues(t *testing.T) {
	f := newFixture(
		face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40},
		face.Box{X1: 100, Y1: 100, X2: 140, Y2: 140},
	)
	f.store.failOn = 1
	conf := DefaultBatchConfig()
	conf.WorkDir = t.TempDir()
	conf.KeepArtifacts = true
	b := NewBatch(f.deps, conf, &sliceSource{n: 1}, newJobStore(t), nil, nil)

	sum, err := b.Run(context.Background(), "job1", "in.mp4", resolver.ModeMatching)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tracks != 2 || sum.Events != 1 {
		t.Errorf("expected 2 tracks and 1 event, got %+v", sum)
	}
	if f.hub.count() != 1 {
		t.Errorf("dropped event should not be broadcast, got %d", f.hub.count())
	}
	if _, err := os.Stat(path.Join(conf.WorkDir, "job1", DetectedDir)); err != nil {
		t.Errorf("artifacts should be kept: %v", err)
	}
}

func TestBatchRunLeavesOtherJobDirs(t *testing.T) {
	for _, keep := range []bool{true, false} {
		f := newFixture(face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40})
		conf := DefaultBatchConfig()
		conf.WorkDir = t.TempDir()
		conf.KeepArtifacts = keep
		b := NewBatch(f.deps, conf, repeatSource{n: 1}, newJobStore(t), nil, nil)

		other := path.Join(conf.WorkDir, "job-running", DetectedDir)
		if err := os.MkdirAll(other, 0o755); err != nil {
			t.Fatal(err)
		}
		for _, id := range []string{"job1", "job2"} {
			if _, err := b.Run(context.Background(), id, "in.mp4", resolver.ModeMatching); err != nil {
				t.Fatal(err)
			}
		}

		if _, err := os.Stat(other); err != nil {
			t.Errorf("keep=%v: another job's directory must survive: %v", keep, err)
		}
		for _, id := range []string{"job1", "job2"} {
			_, err := os.Stat(path.Join(conf.WorkDir, id))
			if keep && err != nil {
				t.Errorf("kept run %s should remain: %v", id, err)
			}
			if !keep && !os.IsNotExist(err) {
				t.Errorf("run %s should be cleaned up", id)
			}
		}
	}
}

func TestBatchML(t *testing.T) {
	f := newFixture(face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40})
	conf := DefaultBatchConfig()
	conf.WorkDir = t.TempDir()
	b := NewBatch(f.deps, conf, &sliceSource{n: 3}, newJobStore(t), nil, nil)

	sum, err := b.Run(context.Background(), "job-ml", "in.mp4", resolver.ModeML)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tracks != 1 || sum.Events != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if f.classifier.calls != 5 {
		t.Errorf("batch ml should cast 5 votes, got %d", f.classifier.calls)
	}
	if s, ok := f.store.events[0].Result.(event.Success); !ok || s.Subject != "Student #9" {
		t.Errorf("unexpected result %+v", f.store.events[0].Result)
	}
}

func TestBatchSampleFailureFailsJob(t *testing.T) {
	f := newFixture()
	conf := DefaultBatchConfig()
	conf.WorkDir = t.TempDir()
	store := newJobStore(t)
	b := NewBatch(f.deps, conf, failingSource{}, store, nil, nil)

	job, err := b.Submit("missing.mp4", resolver.ModeMatching)
	if err != nil {
		t.Fatal(err)
	}
	b.Wait()

	got, _ := store.Get(job.Id)
	if got.Status != jobs.StatusFailed || got.Error == "" {
		t.Errorf("expected failed job, got %+v", got)
	}
}

type failingSource struct{}

func (failingSource) Sample(context.Context, string, string, func(int, image.Image) error) (int, error) {
	return 0, errors.New("cannot open video")
}

// repeatSource yields n frames and keeps no state, so concurrent jobs may
// share it.
type repeatSource struct{ n int }

func (s repeatSource) Sample(_ context.Context, _ string, _ string, fn func(int, image.Image) error) (int, error) {
	for i := 0; i < s.n; i++ {
		if err := fn(i, frame()); err != nil {
			return i, err
		}
	}
	return s.n, nil
}

func TestBatchConcurrentSubmit(t *testing.T) {
	f := newFixture(
		face.Box{X1: 10, Y1: 10, X2: 40, Y2: 40},
		face.Box{X1: 100, Y1: 100, X2: 140, Y2: 140},
	)
	conf := DefaultBatchConfig()
	conf.WorkDir = t.TempDir()
	store := newJobStore(t)
	b := NewBatch(f.deps, conf, repeatSource{n: 2}, store, nil, nil)

	const rounds, perRound = 5, 20
	var ids []string
	var idsMu sync.Mutex
	for r := 0; r < rounds; r++ {
		var wg sync.WaitGroup
		for i := 0; i < perRound; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				job, err := b.Submit("in.mp4", resolver.ModeMatching)
				if err != nil {
					t.Error(err)
					return
				}
				idsMu.Lock()
				ids = append(ids, job.Id)
				idsMu.Unlock()
			}()
		}
		wg.Wait()
		b.Wait()
	}

	if len(ids) != rounds*perRound {
		t.Fatalf("expected %d jobs, got %d", rounds*perRound, len(ids))
	}
	for _, id := range ids {
		job, err := store.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status != jobs.StatusFinished || job.Events != 2 {
			t.Errorf("unexpected job %+v", job)
		}
	}
	if r, u := f.reporter.totals(); r != rounds*perRound || u != rounds*perRound {
		t.Errorf("every delta should be delivered before Wait returns, got %d/%d", r, u)
	}

	b.Stop()
	if _, err := b.Submit("in.mp4", resolver.ModeMatching); err == nil {
		t.Error("stopped batch should refuse new jobs")
	}
}

func TestReporterFlushWhileReporting(t *testing.T) {
	rec := &recordingReporter{}
	rep := newReporter(rec, testLogger)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rep.report(event.NoFace())
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				rep.flush()
			}
		}()
	}
	wg.Wait()
	rep.flush()

	if _, u := rec.totals(); u != 8*50 {
		t.Errorf("expected %d deltas, got %d", 8*50, u)
	}
}
