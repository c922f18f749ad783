package examroute

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/AndrewsGM/driver-pro/internal/db"
	"github.com/AndrewsGM/driver-pro/internal/session"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrRouteNotFound = errors.New("exam route not found")

// DefaultCheckpoints is the route used when a checkpoint session starts
// without a route id.
func DefaultCheckpoints() []session.Checkpoint {
	return []session.Checkpoint{
		{Order: 1, Type: "stop", Instruction: "Stop at the traffic light", TriggerDistanceM: 50},
		{Order: 2, Type: "turn_right", Instruction: "Turn right", TriggerDistanceM: 100},
		{Order: 3, Type: "parking", Instruction: "Start parallel parking here", TriggerDistanceM: 200},
		{Order: 4, Type: "turn_left", Instruction: "Turn left", TriggerDistanceM: 300},
		{Order: 5, Type: "stop", Instruction: "Stop at the crosswalk", TriggerDistanceM: 400},
	}
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateRoute(ctx context.Context, input Route) (Route, error) {
	if s.db == nil {
		return Route{}, db.ErrNoDatabase
	}
	input.ID = uuid.NewString()
	sortCheckpoints(input.Checkpoints)
	raw, err := json.Marshal(input.Checkpoints)
	if err != nil {
		return Route{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO exam_routes (id, name, city, difficulty, duration_minutes, checkpoints)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, input.ID, input.Name, input.City, input.Difficulty, input.DurationMinutes, raw)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Route{}, err
	}
	return input, nil
}

func (s *Service) GetRoute(ctx context.Context, id string) (Route, error) {
	if s.db == nil {
		return Route{}, db.ErrNoDatabase
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, name, city, difficulty, duration_minutes, checkpoints, created_at
		FROM exam_routes WHERE id=$1
	`, id)
	route, err := scanRoute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Route{}, ErrRouteNotFound
	}
	return route, err
}

func (s *Service) ListRoutes(ctx context.Context) ([]Route, error) {
	if s.db == nil {
		return nil, db.ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, name, city, difficulty, duration_minutes, checkpoints, created_at
		FROM exam_routes ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, route)
	}
	return out, rows.Err()
}

// Checkpoints resolves the ordered checkpoints of routeID; an empty id
// yields DefaultCheckpoints.
func (s *Service) Checkpoints(ctx context.Context, routeID string) ([]session.Checkpoint, error) {
	if routeID == "" {
		return DefaultCheckpoints(), nil
	}
	route, err := s.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	return route.Checkpoints, nil
}

func scanRoute(row pgx.Row) (Route, error) {
	var (
		r   Route
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &r.City, &r.Difficulty, &r.DurationMinutes, &raw, &r.CreatedAt); err != nil {
		return Route{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.Checkpoints); err != nil {
			return Route{}, fmt.Errorf("decode checkpoints of %s: %w", r.ID, err)
		}
	}
	sortCheckpoints(r.Checkpoints)
	return r, nil
}

func sortCheckpoints(cps []session.Checkpoint) {
	sort.SliceStable(cps, func(i, j int) bool { return cps[i].Order < cps[j].Order })
}
