package submission

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrExamNotFound = errors.New("exam not found")
	ErrNoSubmission = errors.New("no submission found")
)

// CooldownError rejects a resubmission inside the cooldown window. Remaining
// is whole seconds until the student may try again.
type CooldownError struct {
	Remaining int64
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: retry in %ds", e.Remaining)
}

// Message is the human-readable wait string shown by the client.
func (e *CooldownError) Message() string {
	h := e.Remaining / 3600
	m := (e.Remaining % 3600) / 60
	s := e.Remaining % 60
	return fmt.Sprintf("You can reattempt this exam in %dh %dm %ds", h, m, s)
}

type Store interface {
	// Submit scores and persists one submission plus its answer rows in a
	// single transaction, after passing the cooldown gate.
	Submit(ctx context.Context, examID, studentID int64, answers []AnswerInput) (Result, error)

	// LatestResult returns the most recent submission with its per-question
	// breakdown, ordered by answer insertion.
	LatestResult(ctx context.Context, examID, studentID int64) (Result, error)

	Leaderboard(ctx context.Context, examID int64, limit int) ([]LeaderboardRow, error)
	Analysis(ctx context.Context, examID int64) (Analysis, error)
	RecentResults(ctx context.Context, studentID int64, limit int) ([]RecentResult, error)
}
