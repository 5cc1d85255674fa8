package http

import (
	"database/sql"
	"net/http"
)

func HealthHandler(db *sql.DB, driver string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ok int
		if err := db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "DB check failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": ok == 1, "db": driver})
	}
}
