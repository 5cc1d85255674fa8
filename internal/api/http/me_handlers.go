package http

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/submission"
)

type updateMeReq struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

func UpdateMeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())

		var req updateMeReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Name == "" && req.Email == "" {
			writeError(w, http.StatusBadRequest, "Nothing to update")
			return
		}

		if req.Email != "" {
			req.Email = strings.ToLower(strings.TrimSpace(req.Email))
			var other int64
			err := db.QueryRowContext(r.Context(),
				`SELECT id FROM users WHERE email=$1 AND id<>$2`, req.Email, ident.ID).Scan(&other)
			if err == nil {
				writeError(w, http.StatusConflict, "Email already in use")
				return
			}
			if !errors.Is(err, sql.ErrNoRows) {
				storeError(w, err)
				return
			}
		}

		var u userRow
		err := db.QueryRowContext(r.Context(),
			`SELECT id, name, email, role, created_at FROM users WHERE id=$1`, ident.ID,
		).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			storeError(w, err)
			return
		}

		if req.Name != "" {
			u.Name = req.Name
		}
		if req.Email != "" {
			u.Email = req.Email
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET name=$1, email=$2 WHERE id=$3`, u.Name, u.Email, ident.ID); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func DeleteMeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())
		res, err := db.ExecContext(r.Context(), `DELETE FROM users WHERE id=$1`, ident.ID)
		if err != nil {
			storeError(w, err)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func MyResultsHandler(store submission.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())
		rows, err := store.RecentResults(r.Context(), ident.ID, 10)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func UpcomingExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exams, err := store.UpcomingExams(r.Context(), time.Now().Unix(), 20)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exams)
	}
}

func MyExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())
		exams, err := store.ListExamsByInstructor(r.Context(), ident.ID)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exams)
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

func ChangePasswordHandler(db *sql.DB, bcryptCost int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())

		var req changePasswordReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var storedHash string
		err := db.QueryRowContext(r.Context(),
			`SELECT password_hash FROM users WHERE id=$1`, ident.ID).Scan(&storedHash)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			storeError(w, err)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.OldPassword)) != nil {
			writeError(w, http.StatusForbidden, "Incorrect old password")
			return
		}

		hash, err := auth.HashPassword(req.NewPassword, bcryptCost)
		if err != nil {
			storeError(w, err)
			return
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET password_hash=$1 WHERE id=$2`, hash, ident.ID); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
