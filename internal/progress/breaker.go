package progress

import (
	"context"
	"time"

	"github.com/AndrewsGM/driver-pro/internal/session"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerStore guards a progress store with a circuit breaker so a failing
// database does not slow down every session stop.
type BreakerStore struct {
	next session.ProgressStore
	cb   *gobreaker.CircuitBreaker[[]session.Progress]
}

func NewBreakerStore(next session.ProgressStore, failures uint32, timeout time.Duration, log zerolog.Logger) *BreakerStore {
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "progress-store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker[[]session.Progress](settings)}
}

func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Filter(ctx context.Context, userKey string) ([]session.Progress, error) {
	return b.cb.Execute(func() ([]session.Progress, error) {
		return b.next.Filter(ctx, userKey)
	})
}

func (b *BreakerStore) Create(ctx context.Context, p session.Progress) (session.Progress, error) {
	out, err := b.cb.Execute(func() ([]session.Progress, error) {
		created, err := b.next.Create(ctx, p)
		return []session.Progress{created}, err
	})
	if err != nil {
		return session.Progress{}, err
	}
	return out[0], nil
}

func (b *BreakerStore) Update(ctx context.Context, id string, p session.Progress) (session.Progress, error) {
	out, err := b.cb.Execute(func() ([]session.Progress, error) {
		updated, err := b.next.Update(ctx, id, p)
		return []session.Progress{updated}, err
	})
	if err != nil {
		return session.Progress{}, err
	}
	return out[0], nil
}
