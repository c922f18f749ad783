package session

import "time"

const defaultPlan = "free"

// Progress is the per-user aggregate updated at the end of every session.
type Progress struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	TotalXP          int     `json:"total_xp"`
	TotalSessions    int     `json:"total_sessions"`
	TotalHours       float64 `json:"total_hours"`
	AvgScore         float64 `json:"avg_score"`
	BestScore        int     `json:"best_score"`
	LastSessionDate  string  `json:"last_session_date"`
	SubscriptionPlan string  `json:"subscription_plan"`
}

// Result is what a finished session contributes to Progress.
type Result struct {
	Score          int
	XP             int
	ElapsedSeconds int64
	FinishedAt     time.Time
}

// Apply folds r into p. The average is an incremental mean weighted by the
// previous session count.
func (p Progress) Apply(r Result) Progress {
	out := p
	out.TotalXP += r.XP
	out.TotalHours += float64(r.ElapsedSeconds) / 3600
	out.AvgScore = (p.AvgScore*float64(p.TotalSessions) + float64(r.Score)) / float64(p.TotalSessions+1)
	out.TotalSessions = p.TotalSessions + 1
	if r.Score > out.BestScore {
		out.BestScore = r.Score
	}
	out.LastSessionDate = r.FinishedAt.Format(time.DateOnly)
	if out.SubscriptionPlan == "" {
		out.SubscriptionPlan = defaultPlan
	}
	return out
}

// NewProgress is the aggregate created for a user's first finished session.
func NewProgress(userID string, r Result) Progress {
	return Progress{UserID: userID, SubscriptionPlan: defaultPlan}.Apply(r)
}
