package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
)

func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exams, err := store.ListExams(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exams)
	}
}

type createExamReq struct {
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	ScheduledAt     string `json:"scheduled_at"`
}

func CreateExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())

		var req createExamReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var scheduledAt *int64
		if req.ScheduledAt != "" {
			unix, err := parseSchedule(req.ScheduledAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid scheduled_at format. Use YYYY-MM-DDTHH:MM")
				return
			}
			scheduledAt = &unix
		}

		e, err := store.CreateExam(r.Context(), exam.Exam{
			Title:           req.Title,
			Description:     req.Description,
			DurationMinutes: req.DurationMinutes,
			InstructorID:    &ident.ID,
			ScheduledAt:     scheduledAt,
		})
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func DeleteExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, err := pathID(r, "examID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exam id")
			return
		}
		e, err := store.GetExam(r.Context(), examID)
		if err != nil {
			storeError(w, err)
			return
		}
		if !canManageExam(r, e) {
			writeError(w, http.StatusForbidden, "Not your exam")
			return
		}
		if err := store.DeleteExam(r.Context(), examID); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type questionReq struct {
	Text          string  `json:"text" validate:"required"`
	OptionA       string  `json:"option_a" validate:"required"`
	OptionB       string  `json:"option_b" validate:"required"`
	OptionC       string  `json:"option_c" validate:"required"`
	OptionD       string  `json:"option_d" validate:"required"`
	CorrectOption string  `json:"correct_option" validate:"required,oneof=A B C D"`
	Marks         float64 `json:"marks" validate:"gte=0"`
	NegativeMarks float64 `json:"negative_marks" validate:"gte=0"`
}

type addQuestionsReq struct {
	Questions []questionReq `json:"questions" validate:"required,min=1,dive"`
}

func AddQuestionsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, err := pathID(r, "examID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exam id")
			return
		}
		var req addQuestionsReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid question format")
			return
		}

		e, err := store.GetExam(r.Context(), examID)
		if err != nil {
			storeError(w, err)
			return
		}
		if !canManageExam(r, e) {
			writeError(w, http.StatusForbidden, "Not your exam")
			return
		}

		qs := make([]exam.Question, 0, len(req.Questions))
		for _, q := range req.Questions {
			marks := q.Marks
			if marks == 0 {
				marks = 1
			}
			qs = append(qs, exam.Question{
				Text:          q.Text,
				OptionA:       q.OptionA,
				OptionB:       q.OptionB,
				OptionC:       q.OptionC,
				OptionD:       q.OptionD,
				CorrectOption: q.CorrectOption,
				Marks:         marks,
				NegativeMarks: q.NegativeMarks,
			})
		}
		inserted, err := store.AddQuestions(r.Context(), examID, qs)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inserted)
	}
}

// GetExamQuestionsHandler serves the attempt payload: the exam plus its
// questions with correct options stripped.
func GetExamQuestionsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, err := pathID(r, "examID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exam id")
			return
		}
		e, err := store.GetExam(r.Context(), examID)
		if err != nil {
			storeError(w, err)
			return
		}
		qs, err := store.ListQuestions(r.Context(), examID, false)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exam": e, "questions": qs})
	}
}

// canManageExam applies the ownership policy: admins manage any exam,
// instructors only their own.
func canManageExam(r *http.Request, e exam.Exam) bool {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return false
	}
	if ident.Role == "admin" {
		return true
	}
	return e.InstructorID != nil && *e.InstructorID == ident.ID
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// parseSchedule accepts the formats an HTML datetime-local control emits.
func parseSchedule(s string) (int64, error) {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, errors.New("unrecognized schedule format")
}
