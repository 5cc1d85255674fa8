package exam

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("exam not found")

type Store interface {
	CreateExam(ctx context.Context, e Exam) (Exam, error)
	GetExam(ctx context.Context, id int64) (Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)
	ListExamsByInstructor(ctx context.Context, instructorID int64) ([]Exam, error)
	UpcomingExams(ctx context.Context, after int64, limit int) ([]Exam, error)
	DeleteExam(ctx context.Context, id int64) error

	AddQuestions(ctx context.Context, examID int64, qs []Question) ([]Question, error)
	// ListQuestions hides correct options unless withKeys is set.
	ListQuestions(ctx context.Context, examID int64, withKeys bool) ([]Question, error)
}
