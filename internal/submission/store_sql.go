package submission

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"time"
)

type SQLStore struct {
	db       *sql.DB
	driver   string // "sqlite" or "postgres"
	cooldown time.Duration
	now      func() time.Time
}

func NewSQLStore(db *sql.DB, driver string, cooldown time.Duration) *SQLStore {
	return &SQLStore{db: db, driver: driver, cooldown: cooldown, now: time.Now}
}

type questionKey struct {
	correct string
	marks   float64
	neg     float64
}

func (s *SQLStore) Submit(ctx context.Context, examID, studentID int64, answers []AnswerInput) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	var exist int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM exams WHERE id=$1`, examID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrExamNotFound
		}
		return Result{}, err
	}

	// Cooldown gate. The lookup and the insert below share one transaction;
	// on postgres the row lock keeps two near-simultaneous submits of the
	// same (exam, student) from both passing the check. sqlite serializes
	// writing transactions on its own.
	lockQ := `SELECT submitted_at FROM submissions WHERE exam_id=$1 AND student_id=$2 ORDER BY submitted_at DESC LIMIT 1`
	if s.driver == "postgres" {
		lockQ += ` FOR UPDATE`
	}
	now := s.now().Unix()
	var last int64
	err = tx.QueryRowContext(ctx, lockQ, examID, studentID).Scan(&last)
	switch {
	case err == nil:
		elapsed := now - last
		if window := int64(s.cooldown / time.Second); elapsed < window {
			return Result{}, &CooldownError{Remaining: window - elapsed}
		}
	case errors.Is(err, sql.ErrNoRows):
		// first submission for this pair
	default:
		return Result{}, err
	}

	qs, err := loadQuestionKeys(ctx, tx, examID)
	if err != nil {
		return Result{}, err
	}

	score := 0.0
	for _, a := range answers {
		q, ok := qs[a.QuestionID]
		if !ok {
			continue // foreign or stale question id: no score effect, no row
		}
		if a.ChosenOption == q.correct {
			score += q.marks
		} else {
			score -= q.neg
		}
	}

	var subID int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO submissions (exam_id, student_id, score, submitted_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		examID, studentID, score, now,
	).Scan(&subID); err != nil {
		return Result{}, err
	}

	details := make([]ResultDetail, 0, len(answers))
	for _, a := range answers {
		q, ok := qs[a.QuestionID]
		if !ok {
			continue
		}
		correct := a.ChosenOption == q.correct
		var chosen any
		var chosenPtr *string
		if a.ChosenOption != "" {
			chosen = a.ChosenOption
			v := a.ChosenOption
			chosenPtr = &v
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (submission_id, question_id, chosen_option, is_correct) VALUES ($1,$2,$3,$4)`,
			subID, a.QuestionID, chosen, boolToInt(correct),
		); err != nil {
			return Result{}, err
		}
		details = append(details, ResultDetail{
			QuestionID:    a.QuestionID,
			ChosenOption:  chosenPtr,
			IsCorrect:     correct,
			CorrectOption: q.correct,
		})
	}

	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{SubmissionID: subID, Score: score, SubmittedAt: now, Details: details}, nil
}

func (s *SQLStore) LatestResult(ctx context.Context, examID, studentID int64) (Result, error) {
	var res Result
	err := s.db.QueryRowContext(ctx,
		`SELECT id, score, submitted_at FROM submissions
		 WHERE exam_id=$1 AND student_id=$2
		 ORDER BY submitted_at DESC, id DESC LIMIT 1`,
		examID, studentID,
	).Scan(&res.SubmissionID, &res.Score, &res.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNoSubmission
	}
	if err != nil {
		return Result{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.question_id, a.chosen_option, a.is_correct, q.correct_option
		 FROM answers a JOIN questions q ON q.id = a.question_id
		 WHERE a.submission_id=$1
		 ORDER BY a.id ASC`, res.SubmissionID)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	res.Details = []ResultDetail{}
	for rows.Next() {
		var d ResultDetail
		var chosen sql.NullString
		var correct int
		if err := rows.Scan(&d.QuestionID, &chosen, &correct, &d.CorrectOption); err != nil {
			return Result{}, err
		}
		if chosen.Valid {
			d.ChosenOption = &chosen.String
		}
		d.IsCorrect = correct != 0
		res.Details = append(res.Details, d)
	}
	return res, rows.Err()
}

func (s *SQLStore) Leaderboard(ctx context.Context, examID int64, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sub.student_id, u.name, sub.score, sub.submitted_at
		 FROM submissions sub JOIN users u ON u.id = sub.student_id
		 WHERE sub.exam_id=$1
		 ORDER BY sub.score DESC, sub.submitted_at ASC
		 LIMIT $2`, examID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LeaderboardRow{}
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.StudentID, &r.Name, &r.Score, &r.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Analysis(ctx context.Context, examID int64) (Analysis, error) {
	var a Analysis

	scores, err := s.examScores(ctx, examID)
	if err != nil {
		return Analysis{}, err
	}
	a.Summary, a.Buckets = summarize(scores)

	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.text, COUNT(a.id), COALESCE(AVG(CAST(a.is_correct AS REAL)), -1)
		 FROM questions q
		 LEFT JOIN answers a ON a.question_id = q.id
		 WHERE q.exam_id=$1
		 GROUP BY q.id, q.text
		 ORDER BY q.id ASC`, examID)
	if err != nil {
		return Analysis{}, err
	}
	defer rows.Close()

	a.PerQuestion = []QuestionStat{}
	for rows.Next() {
		var st QuestionStat
		var acc float64
		if err := rows.Scan(&st.ID, &st.Text, &st.Responses, &acc); err != nil {
			return Analysis{}, err
		}
		if st.Responses > 0 && acc >= 0 {
			pct := math.Round(acc*100*100) / 100
			st.AccuracyPercent = &pct
		}
		a.PerQuestion = append(a.PerQuestion, st)
	}
	return a, rows.Err()
}

func (s *SQLStore) RecentResults(ctx context.Context, studentID int64, limit int) ([]RecentResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sub.id, sub.exam_id, e.title, sub.score, sub.submitted_at
		 FROM submissions sub JOIN exams e ON e.id = sub.exam_id
		 WHERE sub.student_id=$1
		 ORDER BY sub.submitted_at DESC
		 LIMIT $2`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecentResult{}
	for rows.Next() {
		var r RecentResult
		if err := rows.Scan(&r.SubmissionID, &r.ExamID, &r.Title, &r.Score, &r.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) examScores(ctx context.Context, examID int64) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT score FROM submissions WHERE exam_id=$1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		scores = append(scores, v)
	}
	return scores, rows.Err()
}

// summarize computes the attempt summary and the width-10 histogram in Go so
// both drivers behave identically; bucketing floors toward negative infinity.
func summarize(scores []float64) (Summary, []Bucket) {
	sum := Summary{Attempts: len(scores)}
	buckets := []Bucket{}
	if len(scores) == 0 {
		return sum, buckets
	}

	total := 0.0
	sum.MinScore = scores[0]
	sum.MaxScore = scores[0]
	counts := map[int]int{}
	for _, v := range scores {
		total += v
		if v < sum.MinScore {
			sum.MinScore = v
		}
		if v > sum.MaxScore {
			sum.MaxScore = v
		}
		counts[int(math.Floor(v/10))*10]++
	}
	sum.AvgScore = math.Round(total/float64(len(scores))*100) / 100

	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		buckets = append(buckets, Bucket{Bucket: k, Count: counts[k]})
	}
	return sum, buckets
}

type queryRower interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadQuestionKeys(ctx context.Context, q queryRower, examID int64) (map[int64]questionKey, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, correct_option, marks, negative_marks FROM questions WHERE exam_id=$1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]questionKey{}
	for rows.Next() {
		var id int64
		var k questionKey
		if err := rows.Scan(&id, &k.correct, &k.marks, &k.neg); err != nil {
			return nil, err
		}
		out[id] = k
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
