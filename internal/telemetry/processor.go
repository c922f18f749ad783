package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AndrewsGM/driver-pro/internal/shared/geo"

	"github.com/rs/zerolog"
)

var (
	ErrSensorUnavailable = errors.New("location sensor unavailable")
	ErrNotAccepting      = errors.New("processor is not accepting fixes")
)

const mpsToKmh = 3.6

// LocationSource yields fixes until ctx is done. Implementations close the
// returned channel when they stop producing.
type LocationSource interface {
	Watch(ctx context.Context) (<-chan GeoFix, error)
}

// Processor turns a stream of GeoFix samples into a route, a cumulative
// distance and a current speed. Fixes are applied in arrival order and each
// accepted fix is pushed to the subscribers before the next one is applied.
// Subscribers must not call OnFix.
type Processor struct {
	// notifyMu serializes apply+notify so subscribers observe updates in
	// the order fixes were applied.
	notifyMu sync.Mutex

	mu          sync.RWMutex
	started     bool
	route       []RoutePoint
	snap        Snapshot
	subscribers []func(Update)
	cancel      context.CancelFunc
	// done is closed when the background consumer returns.
	done chan struct{}

	log zerolog.Logger
}

func NewProcessor(log zerolog.Logger) *Processor {
	return &Processor{log: log}
}

// Subscribe registers fn to receive an Update for every accepted fix.
func (p *Processor) Subscribe(fn func(Update)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Start begins accepting fixes. It is a no-op when sessionActive is false or
// the processor is already started. When src is not nil its fixes are
// consumed in the background until Stop is called or the source closes.
// A source that cannot be watched leaves the processor not started and
// returns ErrSensorUnavailable.
func (p *Processor) Start(ctx context.Context, sessionActive bool, src LocationSource) error {
	if !sessionActive {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	if src == nil {
		p.started = true
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	fixes, err := src.Watch(watchCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}

	p.started = true
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	go func() {
		defer close(done)
		p.consume(watchCtx, fixes)
	}()
	return nil
}

// Drain waits until the background consumer has applied every fix its
// source delivered before closing, or until ctx is done. The source must be
// closed first, otherwise Drain only returns on ctx.
func (p *Processor) Drain(ctx context.Context) error {
	p.mu.RLock()
	done := p.done
	p.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) consume(ctx context.Context, fixes <-chan GeoFix) {
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-fixes:
			if !ok {
				return
			}
			if _, err := p.OnFix(fix); err != nil {
				if errors.Is(err, ErrNotAccepting) {
					return
				}
				p.log.Warn().Err(err).Msg("fix rejected")
			}
		}
	}
}

// OnFix appends fix to the route, adds the haversine distance from the
// previous point and refreshes the speed when the fix carries one.
// Out-of-order fixes are appended as received and counted.
func (p *Processor) OnFix(fix GeoFix) (Snapshot, error) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return Snapshot{}, ErrNotAccepting
	}

	point := RoutePoint{Lat: fix.Lat, Lng: fix.Lng, Timestamp: fix.Timestamp}
	if n := len(p.route); n > 0 {
		prev := p.route[n-1]
		p.snap.CumulativeDistanceKm += geo.HaversineKm(prev.Lat, prev.Lng, point.Lat, point.Lng)
		if point.Timestamp.Before(prev.Timestamp) {
			p.snap.OutOfOrderFixes++
		}
	}
	p.route = append(p.route, point)

	if fix.SpeedMps != nil {
		p.snap.CurrentSpeedKmh = *fix.SpeedMps * mpsToKmh
		if p.snap.CurrentSpeedKmh > p.snap.MaxSpeedKmh {
			p.snap.MaxSpeedKmh = p.snap.CurrentSpeedKmh
		}
	}
	current := point
	p.snap.CurrentPosition = &current
	p.snap.FixCount++

	snap := p.snapshotLocked()
	n := len(p.route)
	update := Update{Point: point, Route: p.route[:n:n], Snapshot: snap}
	subscribers := p.subscribers
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(update)
	}
	return snap, nil
}

// Stop stops accepting fixes. Accumulated state stays readable.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Processor) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Processor) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

// Route returns a copy of the route in arrival order.
func (p *Processor) Route() []RoutePoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]RoutePoint, len(p.route))
	copy(out, p.route)
	return out
}

func (p *Processor) snapshotLocked() Snapshot {
	snap := p.snap
	if snap.CurrentPosition != nil {
		pos := *snap.CurrentPosition
		snap.CurrentPosition = &pos
	}
	return snap
}
