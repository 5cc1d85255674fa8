package exam

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver, now: time.Now}
}

func (s *SQLStore) CreateExam(ctx context.Context, e Exam) (Exam, error) {
	e.CreatedAt = s.now().Unix()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO exams (title, description, duration_minutes, instructor_id, scheduled_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		e.Title, nullStr(e.Description), e.DurationMinutes, e.InstructorID, e.ScheduledAt, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *SQLStore) GetExam(ctx context.Context, id int64) (Exam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT e.id, e.title, COALESCE(e.description,''), e.duration_minutes, e.instructor_id, e.scheduled_at, e.created_at,
		        COALESCE(u.name,'')
		 FROM exams e LEFT JOIN users u ON u.id = e.instructor_id
		 WHERE e.id=$1`, id)
	e, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	return e, err
}

func (s *SQLStore) ListExams(ctx context.Context) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.title, COALESCE(e.description,''), e.duration_minutes, e.instructor_id, e.scheduled_at, e.created_at,
		        COALESCE(u.name,'')
		 FROM exams e LEFT JOIN users u ON u.id = e.instructor_id
		 ORDER BY e.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

func (s *SQLStore) ListExamsByInstructor(ctx context.Context, instructorID int64) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.title, COALESCE(e.description,''), e.duration_minutes, e.instructor_id, e.scheduled_at, e.created_at,
		        COALESCE(u.name,'')
		 FROM exams e LEFT JOIN users u ON u.id = e.instructor_id
		 WHERE e.instructor_id=$1
		 ORDER BY e.created_at DESC`, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

func (s *SQLStore) UpcomingExams(ctx context.Context, after int64, limit int) ([]Exam, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.title, COALESCE(e.description,''), e.duration_minutes, e.instructor_id, e.scheduled_at, e.created_at,
		        COALESCE(u.name,'')
		 FROM exams e LEFT JOIN users u ON u.id = e.instructor_id
		 WHERE e.scheduled_at IS NOT NULL AND e.scheduled_at > $1
		 ORDER BY e.scheduled_at ASC
		 LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

func (s *SQLStore) DeleteExam(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) AddQuestions(ctx context.Context, examID int64, qs []Question) ([]Question, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	createdAt := s.now().Unix()
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		q.ExamID = examID
		q.CreatedAt = createdAt
		err := tx.QueryRowContext(ctx,
			`INSERT INTO questions (exam_id, text, option_a, option_b, option_c, option_d, correct_option, marks, negative_marks, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			q.ExamID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption, q.Marks, q.NegativeMarks, q.CreatedAt,
		).Scan(&q.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, examID int64, withKeys bool) ([]Question, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, text, option_a, option_b, option_c, option_d, correct_option, marks, negative_marks, created_at
		 FROM questions WHERE exam_id=$1 ORDER BY id ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Question{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectOption, &q.Marks, &q.NegativeMarks, &q.CreatedAt); err != nil {
			return nil, err
		}
		if !withKeys {
			q.CorrectOption = ""
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanExam(row rowScanner) (Exam, error) {
	var e Exam
	var instructorID sql.NullInt64
	var scheduledAt sql.NullInt64
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &instructorID, &scheduledAt, &e.CreatedAt, &e.InstructorName); err != nil {
		return Exam{}, err
	}
	if instructorID.Valid {
		e.InstructorID = &instructorID.Int64
	}
	if scheduledAt.Valid {
		e.ScheduledAt = &scheduledAt.Int64
	}
	return e, nil
}

func collectExams(rows *sql.Rows) ([]Exam, error) {
	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
