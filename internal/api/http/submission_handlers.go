package http

import (
	"encoding/json"
	"net/http"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/submission"
)

type submitReq struct {
	Answers []submission.AnswerInput `json:"answers"`
}

func SubmitHandler(store submission.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, err := pathID(r, "examID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exam id")
			return
		}
		ident, _ := auth.IdentityFromContext(r.Context())

		var req submitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answers == nil {
			writeError(w, http.StatusBadRequest, "Invalid answers")
			return
		}
		// Anything outside A-D is stored as unanswered, not as free text.
		for i := range req.Answers {
			if !exam.ValidOption(req.Answers[i].ChosenOption) {
				req.Answers[i].ChosenOption = ""
			}
		}

		res, err := store.Submit(r.Context(), examID, ident.ID, req.Answers)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"submission_id": res.SubmissionID,
			"score":         res.Score,
		})
	}
}

func ResultHandler(exams exam.Store, store submission.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, err := pathID(r, "examID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exam id")
			return
		}
		studentID, err := pathID(r, "studentID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid student id")
			return
		}
		ident, _ := auth.IdentityFromContext(r.Context())

		switch ident.Role {
		case "student":
			if ident.ID != studentID {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
		case "instructor":
			// Same ownership rule as analysis: only results for own exams.
			e, err := exams.GetExam(r.Context(), examID)
			if err != nil {
				storeError(w, err)
				return
			}
			if e.InstructorID == nil || *e.InstructorID != ident.ID {
				writeError(w, http.StatusForbidden, "Not your exam")
				return
			}
		}

		res, err := store.LatestResult(r.Context(), examID, studentID)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"score":   res.Score,
			"details": res.Details,
		})
	}
}

func LeaderboardHandler(store submission.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, err := pathID(r, "examID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exam id")
			return
		}
		rows, err := store.Leaderboard(r.Context(), examID, 50)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func AnalysisHandler(exams exam.Store, store submission.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, err := pathID(r, "examID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exam id")
			return
		}
		e, err := exams.GetExam(r.Context(), examID)
		if err != nil {
			storeError(w, err)
			return
		}
		if !canManageExam(r, e) {
			writeError(w, http.StatusForbidden, "Not your exam")
			return
		}
		a, err := store.Analysis(r.Context(), examID)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
