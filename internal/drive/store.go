package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AndrewsGM/driver-pro/internal/db"
	"github.com/AndrewsGM/driver-pro/internal/session"
	"github.com/AndrewsGM/driver-pro/internal/telemetry"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, session_type, status, COALESCE(route_id,''), start_time, end_time,
		       duration_seconds, route_data, errors, telemetry_data, distance_km, final_score, xp_earned`

// Store persists driving sessions in Postgres. Route, errors and counters
// are JSONB documents.
type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, in session.Session) (session.Session, error) {
	if s.db == nil {
		return session.Session{}, unavailable(db.ErrNoDatabase)
	}
	in.ID = uuid.NewString()
	route, errs, counters, err := encodeDocs(in.Route, in.Errors, in.Counters)
	if err != nil {
		return session.Session{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO drive_sessions (id, user_id, session_type, status, route_id, start_time, route_data, errors, telemetry_data)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,$9)
		RETURNING start_time
	`, in.ID, in.UserID, string(in.Type), string(in.Status), in.RouteID, in.StartTime, route, errs, counters)
	if err := row.Scan(&in.StartTime); err != nil {
		return session.Session{}, unavailable(err)
	}
	return in, nil
}

func (s *Store) Update(ctx context.Context, id string, p session.Patch) (session.Session, error) {
	if s.db == nil {
		return session.Session{}, unavailable(db.ErrNoDatabase)
	}
	route, errs, counters, err := encodeDocs(p.Route, p.Errors, p.Counters)
	if err != nil {
		return session.Session{}, err
	}
	var endTime *time.Time
	if !p.EndTime.IsZero() {
		endTime = &p.EndTime
	}

	row := s.db.QueryRow(ctx, `
		UPDATE drive_sessions
		SET status=$2, end_time=$3, duration_seconds=$4, route_data=$5, errors=$6,
		    telemetry_data=$7, distance_km=$8, final_score=$9, xp_earned=$10
		WHERE id=$1
		RETURNING `+sessionColumns, id, string(p.Status), endTime, p.DurationSeconds, route, errs, counters, p.DistanceKm, p.FinalScore, p.XPEarned)
	out, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, unavailable(err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	if s.db == nil {
		return session.Session{}, unavailable(db.ErrNoDatabase)
	}
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM drive_sessions WHERE id=$1`, id)
	out, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, unavailable(err)
	}
	return out, nil
}

// ListByUser returns the user's finished sessions, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]session.Session, error) {
	if s.db == nil {
		return nil, unavailable(db.ErrNoDatabase)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM drive_sessions
		WHERE user_id=$1 AND status='finished'
		ORDER BY start_time DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		item, err := scanSession(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (session.Session, error) {
	var (
		out                   session.Session
		sessionType, status   string
		endTime               *time.Time
		route, errs, counters []byte
	)
	err := row.Scan(&out.ID, &out.UserID, &sessionType, &status, &out.RouteID, &out.StartTime, &endTime,
		&out.DurationSeconds, &route, &errs, &counters, &out.DistanceKm, &out.FinalScore, &out.XPEarned)
	if err != nil {
		return session.Session{}, err
	}
	out.Type = session.Type(sessionType)
	out.Status = session.Status(status)
	if endTime != nil {
		out.EndTime = *endTime
	}

	out.Route = []telemetry.RoutePoint{}
	out.Errors = []session.ErrorEvent{}
	if err := decodeDoc(route, &out.Route); err != nil {
		return session.Session{}, fmt.Errorf("decode route_data: %w", err)
	}
	if err := decodeDoc(errs, &out.Errors); err != nil {
		return session.Session{}, fmt.Errorf("decode errors: %w", err)
	}
	if err := decodeDoc(counters, &out.Counters); err != nil {
		return session.Session{}, fmt.Errorf("decode telemetry_data: %w", err)
	}
	return out, nil
}

func encodeDocs(route []telemetry.RoutePoint, errs []session.ErrorEvent, counters session.Counters) ([]byte, []byte, []byte, error) {
	if route == nil {
		route = []telemetry.RoutePoint{}
	}
	if errs == nil {
		errs = []session.ErrorEvent{}
	}
	r, err := json.Marshal(route)
	if err != nil {
		return nil, nil, nil, err
	}
	e, err := json.Marshal(errs)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := json.Marshal(counters)
	if err != nil {
		return nil, nil, nil, err
	}
	return r, e, c, nil
}

func decodeDoc(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStorageUnavailable, err)
}
