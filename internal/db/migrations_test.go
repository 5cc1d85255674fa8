package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateFromScratch(t *testing.T) {
	conn := openMemory(t)
	if err := Migrate(context.Background(), conn, DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, table := range []string{"users", "exams", "questions", "submissions", "answers"} {
		var n int
		if err := conn.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	var version int64
	if err := conn.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if want := int64(migrations[len(migrations)-1].version); version != want {
		t.Fatalf("version = %d, want %d", version, want)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openMemory(t)
	for i := 0; i < 3; i++ {
		if err := Migrate(context.Background(), conn, DriverSQLite); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
	}
	var applied int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count: %v", err)
	}
	if applied != len(migrations) {
		t.Fatalf("applied = %d, want %d (reruns must not reapply)", applied, len(migrations))
	}
}

func TestMigrateRejectsUnknownDriver(t *testing.T) {
	conn := openMemory(t)
	if err := Migrate(context.Background(), conn, Driver("oracle")); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSchemaConstraints(t *testing.T) {
	conn := openMemory(t)
	if err := Migrate(context.Background(), conn, DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := conn.Exec(
		`INSERT INTO users (name, email, password_hash, role, created_at) VALUES ('x','x@x','h','wizard',0)`,
	); err == nil {
		t.Error("role outside the CHECK list was accepted")
	}

	var instructorID int64
	if err := conn.QueryRow(
		`INSERT INTO users (name, email, password_hash, role, created_at) VALUES ('i','i@x','h','instructor',0) RETURNING id`,
	).Scan(&instructorID); err != nil {
		t.Fatalf("insert instructor: %v", err)
	}
	var examID int64
	if err := conn.QueryRow(
		`INSERT INTO exams (title, duration_minutes, instructor_id, created_at) VALUES ('t',60,$1,0) RETURNING id`,
		instructorID,
	).Scan(&examID); err != nil {
		t.Fatalf("insert exam: %v", err)
	}

	if _, err := conn.Exec(
		`INSERT INTO questions (exam_id, text, option_a, option_b, option_c, option_d, correct_option, created_at)
		 VALUES ($1,'q','a','b','c','d','E',0)`, examID,
	); err == nil {
		t.Error("correct_option outside A-D was accepted")
	}

	// deleting the instructor detaches the exam instead of dropping it
	if _, err := conn.Exec(`DELETE FROM users WHERE id=$1`, instructorID); err != nil {
		t.Fatalf("delete instructor: %v", err)
	}
	var owner sql.NullInt64
	if err := conn.QueryRow(`SELECT instructor_id FROM exams WHERE id=$1`, examID).Scan(&owner); err != nil {
		t.Fatalf("read exam: %v", err)
	}
	if owner.Valid {
		t.Fatalf("instructor_id = %v, want NULL after owner delete", owner.Int64)
	}
}
