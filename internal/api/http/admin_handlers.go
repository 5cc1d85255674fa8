package http

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/exam"
)

func AdminListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, name, email, role, created_at FROM users ORDER BY created_at DESC`)
		if err != nil {
			storeError(w, err)
			return
		}
		defer rows.Close()

		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
				storeError(w, err)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func AdminCreateUserHandler(db *sql.DB, bcryptCost int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := findUserByEmail(r.Context(), db, req.Email); err == nil {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			storeError(w, err)
			return
		}
		u, err := insertUser(r.Context(), db, req.Name, req.Email, req.Password, req.Role, bcryptCost)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

type changeRoleReq struct {
	Role string `json:"role" validate:"required,oneof=student instructor admin"`
}

func AdminChangeRoleHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())
		userID, err := pathID(r, "userID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		var req changeRoleReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		// An admin must not lock themselves out.
		if userID == ident.ID && req.Role != "admin" {
			writeError(w, http.StatusBadRequest, "Cannot change your own role away from admin")
			return
		}

		res, err := db.ExecContext(r.Context(), `UPDATE users SET role=$1 WHERE id=$2`, req.Role, userID)
		if err != nil {
			storeError(w, err)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		var u userRow
		if err := db.QueryRowContext(r.Context(),
			`SELECT id, name, email, role, created_at FROM users WHERE id=$1`, userID,
		).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func AdminDeleteUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, _ := auth.IdentityFromContext(r.Context())
		userID, err := pathID(r, "userID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		if userID == ident.ID {
			writeError(w, http.StatusBadRequest, "Cannot delete yourself")
			return
		}
		res, err := db.ExecContext(r.Context(), `DELETE FROM users WHERE id=$1`, userID)
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

func AdminListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exams, err := store.ListExams(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exams)
	}
}

type trendPoint struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// AdminStatsHandler reports platform totals and a 7-day creation trend for
// exams and submissions.
func AdminStatsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var users, students, instructors, admins int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN role='student' THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN role='instructor' THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN role='admin' THEN 1 ELSE 0 END),0)
			FROM users`).Scan(&users, &students, &instructors, &admins)
		if err != nil {
			storeError(w, err)
			return
		}

		var examsTotal, subsTotal int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&examsTotal); err != nil {
			storeError(w, err)
			return
		}
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&subsTotal); err != nil {
			storeError(w, err)
			return
		}

		cutoff := time.Now().AddDate(0, 0, -6).Truncate(24 * time.Hour).Unix()
		exams7d, err := dailyCounts(ctx, db, `SELECT created_at FROM exams WHERE created_at >= $1`, cutoff)
		if err != nil {
			storeError(w, err)
			return
		}
		subs7d, err := dailyCounts(ctx, db, `SELECT submitted_at FROM submissions WHERE submitted_at >= $1`, cutoff)
		if err != nil {
			storeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"users":       map[string]int{"total": users, "students": students, "instructors": instructors, "admins": admins},
			"exams":       map[string]int{"total": examsTotal},
			"submissions": map[string]int{"total": subsTotal},
			"last7d":      map[string]any{"exams": exams7d, "submissions": subs7d},
		})
	}
}

// dailyCounts buckets unix timestamps by calendar day in Go, so the grouping
// is identical on sqlite and postgres.
func dailyCounts(ctx context.Context, db *sql.DB, query string, cutoff int64) ([]trendPoint, error) {
	rows, err := db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	var days []string
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		day := time.Unix(ts, 0).Format("2006-01-02")
		if _, seen := counts[day]; !seen {
			days = append(days, day)
		}
		counts[day]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(days)
	out := make([]trendPoint, 0, len(days))
	for _, d := range days {
		out = append(out, trendPoint{Day: d, Count: counts[d]})
	}
	return out, nil
}
