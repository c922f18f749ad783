package progress

// RankEntry is one row of the XP ranking.
type RankEntry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	TotalXP       int     `json:"total_xp"`
	TotalSessions int     `json:"total_sessions"`
	AvgScore      float64 `json:"avg_score"`
	BestScore     int     `json:"best_score"`
}
