package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/examhall/examhall/internal/api/http"
	"github.com/examhall/examhall/internal/auth"
	"github.com/examhall/examhall/internal/config"
	"github.com/examhall/examhall/internal/db"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/submission"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	handler := api.NewRouter(api.Deps{
		DB:          dbh,
		Driver:      cfg.DBDriver,
		Auth:        auth.NewService(cfg.AuthHMACSecret, cfg.TokenTTL),
		Exams:       exam.NewSQLStore(dbh, cfg.DBDriver),
		Submissions: submission.NewSQLStore(dbh, cfg.DBDriver, cfg.Cooldown),
		BcryptCost:  cfg.BcryptCost,
		CORSOrigins: cfg.CORSOrigins,
	})

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, handler))
}
