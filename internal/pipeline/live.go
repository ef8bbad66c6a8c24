package pipeline

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"facewatch/internal/event"
	"facewatch/internal/resolver"
)

// Live resolves single frames from a streaming connection. Each frame is its
// own dedup window, so only the first detection is resolved.
type Live struct {
	deps     Deps
	voter    *resolver.Voter
	reporter *reporter
	logger   *logrus.Entry
}

// NewLive builds the live path. votes sets how many augmented predictions the
// ml mode casts per frame; 1 means a single unaugmented prediction.
func NewLive(deps Deps, votes int) *Live {
	l := &Live{
		deps:     deps,
		reporter: newReporter(deps.Reporter, deps.Logger),
		logger:   deps.Logger,
	}
	if v := deps.Resolver.Voter(); v != nil {
		l.voter = v.WithVotes(votes)
	}
	return l
}

// ProcessFrame detects, resolves and persists one frame. A frame without a
// face yields a "no face" warning that is not persisted. The returned error
// is a persistence failure; the event is then dropped.
func (l *Live) ProcessFrame(ctx context.Context, mode resolver.Mode, frame image.Image) (event.Event, error) {
	dets, err := l.deps.Detector.FindFaces(ctx, frame)
	if err != nil {
		l.logger.WithError(err).Warn("face detection failed")
	}
	if len(dets) == 0 {
		l.logger.Debug("no face detected")
		ev := event.New(event.NoFace(), "")
		l.reporter.report(ev.Result)
		return ev, nil
	}

	det := dets[0]
	l.logger.WithField("bbox", det.Box).Debug("detected face")

	res := l.deps.Resolver.ResolveWith(ctx, mode, det.Crop, l.voter)
	ev, err := l.deps.Store.Persist(ctx, event.New(res, l.deps.Location))
	if err != nil {
		return ev, err
	}
	l.reporter.report(ev.Result)

	l.logger.WithFields(logrus.Fields{
		"id":   ev.AlertId,
		"type": ev.Result.Type(),
		"mode": mode,
	}).Info("frame resolved")
	return ev, nil
}

// Publish fans a persisted event out to every ready viewer. Unpersisted
// events are not broadcast.
func (l *Live) Publish(ev event.Event) int {
	if !ev.Persisted() {
		return 0
	}
	return l.deps.Hub.Broadcast(ev)
}

func (l *Live) Flush() {
	l.reporter.flush()
}
