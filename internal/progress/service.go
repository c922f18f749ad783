package progress

import (
	"context"

	"github.com/AndrewsGM/driver-pro/internal/db"
	"github.com/AndrewsGM/driver-pro/internal/session"

	"github.com/google/uuid"
)

const progressColumns = `id, user_id, total_xp, total_sessions, total_hours, avg_score, best_score,
		       COALESCE(to_char(last_session_date, 'YYYY-MM-DD'), ''), subscription_plan`

// Service stores the per-user progress aggregate.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Filter(ctx context.Context, userKey string) ([]session.Progress, error) {
	if s.db == nil {
		return nil, db.ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, `SELECT `+progressColumns+` FROM user_progress WHERE user_id=$1`, userKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Progress
	for rows.Next() {
		var p session.Progress
		if err := rows.Scan(&p.ID, &p.UserID, &p.TotalXP, &p.TotalSessions, &p.TotalHours, &p.AvgScore, &p.BestScore, &p.LastSessionDate, &p.SubscriptionPlan); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) Create(ctx context.Context, p session.Progress) (session.Progress, error) {
	if s.db == nil {
		return session.Progress{}, db.ErrNoDatabase
	}
	p.ID = uuid.NewString()
	if p.SubscriptionPlan == "" {
		p.SubscriptionPlan = "free"
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_progress (id, user_id, total_xp, total_sessions, total_hours, avg_score, best_score, last_session_date, subscription_plan)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,'')::date,$9)
	`, p.ID, p.UserID, p.TotalXP, p.TotalSessions, p.TotalHours, p.AvgScore, p.BestScore, p.LastSessionDate, p.SubscriptionPlan)
	if err != nil {
		return session.Progress{}, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, p session.Progress) (session.Progress, error) {
	if s.db == nil {
		return session.Progress{}, db.ErrNoDatabase
	}
	_, err := s.db.Exec(ctx, `
		UPDATE user_progress
		SET total_xp=$2, total_sessions=$3, total_hours=$4, avg_score=$5, best_score=$6,
		    last_session_date=NULLIF($7,'')::date, updated_at=now()
		WHERE id=$1
	`, id, p.TotalXP, p.TotalSessions, p.TotalHours, p.AvgScore, p.BestScore, p.LastSessionDate)
	if err != nil {
		return session.Progress{}, err
	}
	p.ID = id
	return p, nil
}

// Ranking lists users by total XP, highest first.
func (s *Service) Ranking(ctx context.Context, limit int) ([]RankEntry, error) {
	if s.db == nil {
		return nil, db.ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, `
		SELECT user_id, total_xp, total_sessions, avg_score, best_score
		FROM user_progress
		ORDER BY total_xp DESC, user_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RankEntry{}
	for rows.Next() {
		e := RankEntry{Rank: len(out) + 1}
		if err := rows.Scan(&e.UserID, &e.TotalXP, &e.TotalSessions, &e.AvgScore, &e.BestScore); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
