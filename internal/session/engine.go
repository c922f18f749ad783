package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AndrewsGM/driver-pro/internal/metrics"
	"github.com/AndrewsGM/driver-pro/internal/telemetry"

	"github.com/rs/zerolog"
)

// Deps are the collaborators shared by every engine.
type Deps struct {
	Store     Store
	Progress  ProgressStore
	Publisher Publisher
	Notifier  Notifier
	Clock     Clock
	Logger    zerolog.Logger
	// TickInterval is the cadence of elapsed-time frames; zero disables them.
	TickInterval time.Duration
	// NewSensor builds the location source for a new session. Nil means
	// fixes only arrive through OnFix.
	NewSensor func() telemetry.LocationSource
}

type StartOptions struct {
	Type        Type
	RouteID     string
	Checkpoints []Checkpoint
}

const drainTimeout = 5 * time.Second

type pusher interface {
	Push(fix telemetry.GeoFix) bool
}

type closer interface {
	Close()
}

// Engine owns the lifecycle of one driving session:
// idle -> starting -> active -> finished.
type Engine struct {
	mu     sync.Mutex
	deps   Deps
	log    zerolog.Logger
	userID string

	status  Status
	session Session
	paused  bool
	aborted bool
	watch   stopwatch

	proc      *telemetry.Processor
	sensor    telemetry.LocationSource
	sensorErr error
	lastSnap  telemetry.Snapshot
	cancel    context.CancelFunc

	checkpoints []Checkpoint
	cpIndex     int
	cpScore     int

	report *Report
}

func NewEngine(userID string, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	return &Engine{
		deps:   deps,
		log:    deps.Logger.With().Str("component", "session").Str("user_id", userID).Logger(),
		userID: userID,
		status: StatusIdle,
		watch:  stopwatch{clock: deps.Clock},
	}
}

func (e *Engine) UserID() string { return e.userID }

func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Start creates the session in storage and makes it active. A storage
// failure returns the engine to idle.
func (e *Engine) Start(ctx context.Context, opts StartOptions) (Session, error) {
	if !opts.Type.Valid() {
		return Session{}, ErrInvalidType
	}
	if opts.Type.Checkpointed() && len(opts.Checkpoints) == 0 {
		return Session{}, ErrNoCheckpoints
	}

	e.mu.Lock()
	if e.status != StatusIdle {
		e.mu.Unlock()
		return Session{}, ErrInvalidState
	}
	e.status = StatusStarting
	e.aborted = false
	draft := Session{
		UserID:    e.userID,
		Type:      opts.Type,
		Status:    StatusActive,
		RouteID:   opts.RouteID,
		StartTime: e.deps.Clock.Now().UTC(),
		Route:     []telemetry.RoutePoint{},
		Errors:    []ErrorEvent{},
	}
	e.mu.Unlock()

	created, err := e.create(ctx, draft)

	e.mu.Lock()
	if err != nil {
		e.status = StatusIdle
		e.mu.Unlock()
		metrics.StorageFailures.WithLabelValues("create").Inc()
		e.log.Error().Err(err).Msg("session create failed")
		return Session{}, storageErr(err)
	}
	if e.aborted {
		e.status = StatusIdle
		e.mu.Unlock()
		e.discardAborted(ctx, created)
		return Session{}, fmt.Errorf("%w: start aborted", ErrInvalidState)
	}

	created.Status = StatusActive
	if created.Route == nil {
		created.Route = []telemetry.RoutePoint{}
	}
	if created.Errors == nil {
		created.Errors = []ErrorEvent{}
	}
	e.session = created
	e.status = StatusActive
	e.paused = false
	e.watch.reset()
	e.watch.start()
	e.checkpoints = append([]Checkpoint(nil), opts.Checkpoints...)
	e.cpIndex = 0
	e.cpScore = maxScore
	e.log = e.log.With().Str("session_id", created.ID).Logger()

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.proc = telemetry.NewProcessor(e.log)
	e.proc.Subscribe(e.telemetryFrames(created.ID))
	if e.deps.NewSensor != nil {
		e.sensor = e.deps.NewSensor()
	}
	if err := e.proc.Start(runCtx, true, e.sensor); err != nil {
		e.sensorErr = err
		metrics.SensorUnavailable.Inc()
		e.log.Warn().Err(err).Msg("continuing without location sensor")
	}
	if e.deps.TickInterval > 0 {
		go e.tick(runCtx, created.ID, e.deps.TickInterval)
	}
	out := cloneSession(e.session)
	e.mu.Unlock()

	metrics.SessionsStarted.WithLabelValues(string(opts.Type)).Inc()
	metrics.ActiveSessions.Inc()
	e.log.Info().Str("type", string(opts.Type)).Msg("session started")
	e.notify(frame{Kind: "started", SessionID: created.ID, Session: &out})
	return out, nil
}

// create shields the lifecycle from a panicking store so a failed start
// always returns the engine to idle.
func (e *Engine) create(ctx context.Context, draft Session) (created Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session store panicked: %v", r)
		}
	}()
	return e.deps.Store.Create(ctx, draft)
}

func (e *Engine) discardAborted(ctx context.Context, s Session) {
	_, err := e.deps.Store.Update(ctx, s.ID, Patch{
		Status:  StatusIdle,
		EndTime: e.deps.Clock.Now().UTC(),
		Route:   []telemetry.RoutePoint{},
		Errors:  []ErrorEvent{},
	})
	if err != nil {
		e.log.Warn().Err(err).Str("session_id", s.ID).Msg("aborted session left in storage")
	}
}

func (e *Engine) tick(ctx context.Context, sessionID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.status != StatusActive {
				e.mu.Unlock()
				return
			}
			if e.paused {
				e.mu.Unlock()
				continue
			}
			elapsed := e.watch.seconds()
			e.mu.Unlock()
			e.notify(frame{Kind: "tick", SessionID: sessionID, ElapsedSeconds: &elapsed})
		}
	}
}

func (e *Engine) telemetryFrames(sessionID string) func(telemetry.Update) {
	outOfOrder := 0
	return func(u telemetry.Update) {
		metrics.FixesIngested.Inc()
		if u.Snapshot.OutOfOrderFixes > outOfOrder {
			outOfOrder = u.Snapshot.OutOfOrderFixes
			metrics.OutOfOrderFixes.Inc()
		}
		point, snap := u.Point, u.Snapshot
		routeLen := len(u.Route)
		e.notify(frame{Kind: "telemetry", SessionID: sessionID, Point: &point, Snapshot: &snap, RouteLen: &routeLen})
	}
}

// Pause freezes the elapsed-time clock. Errors and route are untouched.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.status != StatusActive || e.paused {
		e.mu.Unlock()
		return ErrInvalidState
	}
	e.paused = true
	e.watch.stop()
	elapsed := e.watch.seconds()
	id := e.session.ID
	e.mu.Unlock()

	e.notify(frame{Kind: "paused", SessionID: id, ElapsedSeconds: &elapsed})
	return nil
}

func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.status != StatusActive || !e.paused {
		e.mu.Unlock()
		return ErrInvalidState
	}
	e.paused = false
	e.watch.start()
	elapsed := e.watch.seconds()
	id := e.session.ID
	e.mu.Unlock()

	e.notify(frame{Kind: "resumed", SessionID: id, ElapsedSeconds: &elapsed})
	return nil
}

// RecordError appends an error event. Only valid while active.
func (e *Engine) RecordError(severity Severity, description string) (ErrorEvent, error) {
	if !severity.Valid() {
		return ErrorEvent{}, ErrInvalidSeverity
	}

	e.mu.Lock()
	if e.status != StatusActive {
		e.mu.Unlock()
		return ErrorEvent{}, ErrInvalidState
	}
	ev := e.appendErrorLocked(severity, description, nil)
	id := e.session.ID
	e.mu.Unlock()

	e.notify(frame{Kind: "error", SessionID: id, Error: &ev})
	return ev, nil
}

func (e *Engine) appendErrorLocked(severity Severity, description string, checkpoint *int) ErrorEvent {
	ev := ErrorEvent{
		Severity:    severity,
		Description: description,
		Checkpoint:  checkpoint,
		OccurredAt:  e.deps.Clock.Now().UTC(),
	}
	e.session.Errors = append(e.session.Errors, ev)
	metrics.ErrorEvents.WithLabelValues(string(severity)).Inc()
	return ev
}

// RecordEvent counts a driving-behaviour event. Distractions reported by
// attention monitoring also count as light errors.
func (e *Engine) RecordEvent(kind EventKind) (Counters, error) {
	e.mu.Lock()
	if e.status != StatusActive {
		e.mu.Unlock()
		return Counters{}, ErrInvalidState
	}
	switch kind {
	case EventHarshBrake:
		e.session.Counters.HarshBrakes++
	case EventHarshAcceleration:
		e.session.Counters.HarshAccelerations++
	case EventSharpTurn:
		e.session.Counters.SharpTurns++
	case EventDistraction:
		e.session.Counters.DistractionEvents++
		e.appendErrorLocked(SeverityLight, "distraction detected", nil)
	default:
		e.mu.Unlock()
		return Counters{}, ErrInvalidEvent
	}
	counters := e.session.Counters
	id := e.session.ID
	e.mu.Unlock()

	e.notify(frame{Kind: "event", SessionID: id, Counters: &counters})
	return counters, nil
}

// OnFix applies a fix synchronously and returns the refreshed snapshot.
func (e *Engine) OnFix(fix telemetry.GeoFix) (telemetry.Snapshot, error) {
	e.mu.Lock()
	if e.status != StatusActive {
		e.mu.Unlock()
		return telemetry.Snapshot{}, ErrInvalidState
	}
	proc, sensorErr := e.proc, e.sensorErr
	e.mu.Unlock()

	snap, err := proc.OnFix(fix)
	if errors.Is(err, telemetry.ErrNotAccepting) && sensorErr != nil {
		return telemetry.Snapshot{}, sensorErr
	}
	return snap, err
}

// PushFix hands a fix to the session's sensor queue, falling back to a
// synchronous OnFix when the sensor cannot be fed.
func (e *Engine) PushFix(fix telemetry.GeoFix) error {
	e.mu.Lock()
	if e.status != StatusActive {
		e.mu.Unlock()
		return ErrInvalidState
	}
	q, ok := e.sensor.(pusher)
	e.mu.Unlock()

	if ok && q.Push(fix) {
		return nil
	}
	_, err := e.OnFix(fix)
	return err
}

// HandleCheckpointPass applies the outcome of the current checkpoint. A miss
// records a serious error and deducts 5 points from the checkpoint score.
// The last checkpoint finishes the session.
func (e *Engine) HandleCheckpointPass(ctx context.Context, passed bool) (CheckpointResult, error) {
	e.mu.Lock()
	if e.status != StatusActive {
		e.mu.Unlock()
		return CheckpointResult{}, ErrInvalidState
	}
	if !e.session.Type.Checkpointed() || len(e.checkpoints) == 0 {
		e.mu.Unlock()
		return CheckpointResult{}, ErrNoCheckpoints
	}

	idx := e.cpIndex
	if !passed {
		cp := idx
		e.appendErrorLocked(SeveritySerious, "missed checkpoint: "+e.checkpoints[idx].Instruction, &cp)
		e.cpScore -= checkpointPenalty
		if e.cpScore < 0 {
			e.cpScore = 0
		}
	}

	if idx < len(e.checkpoints)-1 {
		e.cpIndex++
		next := e.checkpoints[e.cpIndex]
		res := CheckpointResult{Index: e.cpIndex, Next: &next, Score: e.cpScore}
		id := e.session.ID
		e.mu.Unlock()

		e.notify(frame{Kind: "checkpoint", SessionID: id, Checkpoint: &next})
		return res, nil
	}

	finished := e.finalizeLocked()
	e.mu.Unlock()

	report := e.persist(ctx, finished)
	return CheckpointResult{Index: idx, Score: report.Session.FinalScore, Report: &report}, nil
}

// Stop finishes the session exactly once. Stopping an idle engine does
// nothing; stopping while starting aborts the start; a second stop returns
// the first report with ErrAlreadyFinished.
func (e *Engine) Stop(ctx context.Context) (Report, error) {
	e.mu.Lock()
	switch e.status {
	case StatusIdle:
		e.mu.Unlock()
		return Report{}, nil
	case StatusStarting:
		e.aborted = true
		e.mu.Unlock()
		return Report{Session: Session{UserID: e.userID, Status: StatusIdle}}, nil
	case StatusFinished:
		r := cloneReport(*e.report)
		e.mu.Unlock()
		r.AlreadyFinished = true
		return r, ErrAlreadyFinished
	}

	finished := e.finalizeLocked()
	e.mu.Unlock()

	return e.persist(ctx, finished), nil
}

// finalizeLocked freezes the clock, reads the final telemetry, computes the
// score and XP and moves to finished. The processor is discarded.
func (e *Engine) finalizeLocked() Session {
	e.watch.stop()
	elapsed := e.watch.seconds()

	// Fixes already accepted by the sensor queue belong to this session.
	if c, ok := e.sensor.(closer); ok {
		c.Close()
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := e.proc.Drain(drainCtx); err != nil {
			e.log.Warn().Err(err).Msg("sensor queue not fully drained at stop")
		}
		cancel()
	}
	e.sensor = nil
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	e.proc.Stop()
	e.lastSnap = e.proc.Snapshot()
	route := e.proc.Route()
	e.proc = nil

	score := ComputeScore(e.session.Errors)
	if e.session.Type.Checkpointed() && len(e.checkpoints) > 0 {
		score = e.cpScore
	}

	s := &e.session
	s.Status = StatusFinished
	s.EndTime = e.deps.Clock.Now().UTC()
	s.DurationSeconds = elapsed
	s.Route = route
	s.DistanceKm = e.lastSnap.CumulativeDistanceKm
	s.FinalScore = score
	s.XPEarned = ComputeXP(score, elapsed)

	e.status = StatusFinished
	e.paused = false
	out := cloneSession(*s)
	e.report = &Report{Session: out}
	if s.Type.Checkpointed() && len(e.checkpoints) > 0 {
		passed := ExamPassed(score)
		e.report.Passed = &passed
	}

	metrics.ActiveSessions.Dec()
	metrics.SessionsFinished.WithLabelValues(string(s.Type)).Inc()
	metrics.FinalScore.Observe(float64(score))
	return cloneSession(out)
}

// persist writes the finished session, then the progress aggregate, then the
// finished event. Each write is independent; failures become warnings.
func (e *Engine) persist(ctx context.Context, s Session) Report {
	var warnings []string

	_, err := e.deps.Store.Update(ctx, s.ID, Patch{
		Status:          s.Status,
		EndTime:         s.EndTime,
		DurationSeconds: s.DurationSeconds,
		Route:           s.Route,
		Errors:          s.Errors,
		Counters:        s.Counters,
		DistanceKm:      s.DistanceKm,
		FinalScore:      s.FinalScore,
		XPEarned:        s.XPEarned,
	})
	switch {
	case err != nil:
		metrics.StorageFailures.WithLabelValues("update").Inc()
		e.log.Error().Err(err).Msg("finished session not stored, progress update skipped")
		warnings = append(warnings, storageErr(err).Error())
	case e.deps.Progress != nil:
		if err := e.updateProgress(ctx, s); err != nil {
			metrics.ProgressUpdateFailures.Inc()
			e.log.Warn().Err(err).Msg("progress update failed")
			warnings = append(warnings, "progress update failed: "+err.Error())
		}
	}

	if e.deps.Publisher != nil {
		if err := e.deps.Publisher.PublishFinished(ctx, s); err != nil {
			e.log.Warn().Err(err).Msg("finished event not published")
			warnings = append(warnings, "event publish failed: "+err.Error())
		}
	}

	e.mu.Lock()
	e.report.Warnings = warnings
	report := cloneReport(*e.report)
	e.mu.Unlock()

	e.log.Info().
		Int("final_score", s.FinalScore).
		Int("xp_earned", s.XPEarned).
		Int64("duration_seconds", s.DurationSeconds).
		Float64("distance_km", s.DistanceKm).
		Msg("session finished")
	e.notify(frame{Kind: "finished", SessionID: s.ID, Session: &s})
	return report
}

func (e *Engine) updateProgress(ctx context.Context, s Session) error {
	list, err := e.deps.Progress.Filter(ctx, s.UserID)
	if err != nil {
		return err
	}
	res := Result{Score: s.FinalScore, XP: s.XPEarned, ElapsedSeconds: s.DurationSeconds, FinishedAt: s.EndTime}
	if len(list) > 0 {
		_, err = e.deps.Progress.Update(ctx, list[0].ID, list[0].Apply(res))
		return err
	}
	_, err = e.deps.Progress.Create(ctx, NewProgress(s.UserID, res))
	return err
}

// View returns the live state of the session.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		Session:           cloneSession(e.session),
		ElapsedSeconds:    e.watch.seconds(),
		Paused:            e.paused,
		SensorUnavailable: e.sensorErr != nil,
		Snapshot:          e.lastSnap,
	}
	if e.status == StatusStarting || e.status == StatusIdle {
		v.Session.Status = e.status
	}
	if e.proc != nil {
		v.Snapshot = e.proc.Snapshot()
		v.Session.DistanceKm = v.Snapshot.CumulativeDistanceKm
	}
	if e.status == StatusActive && len(e.checkpoints) > 0 {
		cp := e.checkpoints[e.cpIndex]
		score := e.cpScore
		v.Checkpoint = &cp
		v.CheckpointScore = &score
	}
	v.Session.Route = nil
	return v
}

// Route returns the live route, or the stored route once finished.
func (e *Engine) Route() []telemetry.RoutePoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc != nil {
		return e.proc.Route()
	}
	return append([]telemetry.RoutePoint{}, e.session.Route...)
}

func storageErr(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func cloneSession(s Session) Session {
	out := s
	out.Route = append([]telemetry.RoutePoint{}, s.Route...)
	out.Errors = append([]ErrorEvent{}, s.Errors...)
	return out
}

func cloneReport(r Report) Report {
	out := r
	out.Session = cloneSession(r.Session)
	out.Warnings = append([]string(nil), r.Warnings...)
	return out
}
