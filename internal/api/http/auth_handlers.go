package http

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/examhall/examhall/internal/auth"
)

type userRow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

type signupReq struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=student instructor admin"`
}

func SignupHandler(db *sql.DB, authSvc *auth.Service, bcryptCost int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))

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
		token, err := authSvc.IssueToken(u.ID, u.Role, u.Name, u.Email)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": u})
	}
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func LoginHandler(db *sql.DB, authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var u userRow
		var hash string
		err := db.QueryRowContext(r.Context(),
			`SELECT id, name, email, role, password_hash, created_at FROM users WHERE email=$1`,
			strings.ToLower(strings.TrimSpace(req.Email)),
		).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &hash, &u.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !auth.CheckPassword(hash, req.Password)) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if err != nil {
			storeError(w, err)
			return
		}

		token, err := authSvc.IssueToken(u.ID, u.Role, u.Name, u.Email)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
	}
}

func findUserByEmail(ctx context.Context, db *sql.DB, email string) (userRow, error) {
	var u userRow
	err := db.QueryRowContext(ctx,
		`SELECT id, name, email, role, created_at FROM users WHERE email=$1`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}

func insertUser(ctx context.Context, db *sql.DB, name, email, password, role string, bcryptCost int) (userRow, error) {
	hash, err := auth.HashPassword(password, bcryptCost)
	if err != nil {
		return userRow{}, err
	}
	u := userRow{Name: name, Email: email, Role: role, CreatedAt: time.Now().Unix()}
	err = db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		name, email, hash, role, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return userRow{}, err
	}
	return u, nil
}
