package session

const (
	maxScore            = 100
	lightPenalty        = 1
	seriousPenalty      = 5
	checkpointPenalty   = 5
	xpPerMinute         = 10
	excellenceThreshold = 90
	excellenceBonus     = 50
	passThreshold       = 70
)

// ExamPassed reports the verdict of a checkpoint session: approved at 70
// points or more.
func ExamPassed(score int) bool {
	return score >= passThreshold
}

// ComputeScore returns max(0, 100 - light - 5*serious).
func ComputeScore(errs []ErrorEvent) int {
	score := maxScore
	for _, e := range errs {
		switch e.Severity {
		case SeverityLight:
			score -= lightPenalty
		case SeveritySerious:
			score -= seriousPenalty
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// ComputeXP returns floor(duration/60)*10 + floor(score/2), plus 50 when
// score >= 90. Stored sessions depend on this exact formula.
func ComputeXP(score int, durationSeconds int64) int {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	if score < 0 {
		score = 0
	}
	xp := int(durationSeconds/60)*xpPerMinute + score/2
	if score >= excellenceThreshold {
		xp += excellenceBonus
	}
	return xp
}
