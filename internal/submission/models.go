package submission

// AnswerInput is one submitted answer. Entries whose question id does not
// belong to the exam are ignored without error and never stored.
type AnswerInput struct {
	QuestionID   int64  `json:"question_id"`
	ChosenOption string `json:"chosen_option"`
}

type ResultDetail struct {
	QuestionID    int64   `json:"question_id"`
	ChosenOption  *string `json:"chosen_option"`
	IsCorrect     bool    `json:"is_correct"`
	CorrectOption string  `json:"correct_option"`
}

type Result struct {
	SubmissionID int64          `json:"submission_id"`
	Score        float64        `json:"score"`
	SubmittedAt  int64          `json:"submitted_at"`
	Details      []ResultDetail `json:"details"`
}

type LeaderboardRow struct {
	StudentID   int64   `json:"student_id"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	SubmittedAt int64   `json:"submitted_at"`
}

type Summary struct {
	Attempts int     `json:"attempts"`
	AvgScore float64 `json:"avg_score"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`
}

// Bucket is a score-histogram bin: floor(score/10)*10, so penalty-heavy
// scores land in negative buckets.
type Bucket struct {
	Bucket int `json:"bucket"`
	Count  int `json:"count"`
}

type QuestionStat struct {
	ID              int64    `json:"id"`
	Text            string   `json:"text"`
	AccuracyPercent *float64 `json:"accuracy_percent"`
	Responses       int      `json:"responses"`
}

type Analysis struct {
	Summary     Summary        `json:"summary"`
	Buckets     []Bucket       `json:"buckets"`
	PerQuestion []QuestionStat `json:"perQuestion"`
}

// RecentResult is a row on a student's dashboard.
type RecentResult struct {
	SubmissionID int64   `json:"submission_id"`
	ExamID       int64   `json:"exam_id"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	SubmittedAt  int64   `json:"submitted_at"`
}
