// Package pipeline runs frames from the live and batch ingestion paths
// through detection, identity resolution, persistence and fan-out.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"facewatch/internal/dashboard"
	"facewatch/internal/event"
	"facewatch/internal/face"
	"facewatch/internal/resolver"
)

// Store persists a resolved event and returns it with its alert id set.
type Store interface {
	Persist(ctx context.Context, ev event.Event) (event.Event, error)
}

type Broadcaster interface {
	Broadcast(v any) int
}

// Archiver copies a local artifact to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, localPath, objectPath string) error
}

// Deps are the collaborators shared by the live and batch paths.
type Deps struct {
	Detector face.Detector
	Resolver *resolver.Resolver
	Store    Store
	Hub      Broadcaster
	Reporter dashboard.Reporter
	Location string
	Logger   *logrus.Entry
}

// reporter delivers dashboard deltas in the background so a slow aggregator
// never stalls frame processing. report and flush may be called from any
// goroutine at any time.
type reporter struct {
	r       dashboard.Reporter
	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	logger  *logrus.Entry
}

func newReporter(r dashboard.Reporter, logger *logrus.Entry) *reporter {
	if r == nil {
		r = dashboard.NopReporter{}
	}
	rep := &reporter{r: r, logger: logger}
	rep.idle = sync.NewCond(&rep.mu)
	return rep
}

func (r *reporter) report(res event.Result) {
	d := dashboard.ForResult(res, time.Now())
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	go func() {
		defer r.done()
		ctx, cancel := context.WithTimeout(context.Background(), dashboard.DefaultReportTimeout)
		defer cancel()
		if out := r.r.Report(ctx, d); out.Err != nil {
			r.logger.WithError(out.Err).Debug("dashboard delta not delivered")
		}
	}()
}

func (r *reporter) done() {
	r.mu.Lock()
	r.pending--
	if r.pending == 0 {
		r.idle.Broadcast()
	}
	r.mu.Unlock()
}

// flush waits until no delta is in flight.
func (r *reporter) flush() {
	r.mu.Lock()
	for r.pending > 0 {
		r.idle.Wait()
	}
	r.mu.Unlock()
}
