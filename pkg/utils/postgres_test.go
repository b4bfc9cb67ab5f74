package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	cfg := PostgresPoolConfig{MaxOpenConns: 3}.withDefaults()
	if cfg.MaxOpenConns != 3 || cfg.MaxIdleConns != 25 || cfg.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(dup) {
		t.Fatalf("expected wrapped 23505 to match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestMigrationURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@h:5432/db?sslmode=disable": "pgx5://u:p@h:5432/db?sslmode=disable",
		"postgresql://h/db":                        "pgx5://h/db",
		"pgx5://h/db":                              "pgx5://h/db",
	}
	for in, want := range cases {
		got, err := MigrationURL(in)
		if err != nil || got != want {
			t.Fatalf("MigrationURL(%q)=(%q,%v) want %q", in, got, err, want)
		}
	}
	if _, err := MigrationURL("host=h dbname=db"); err == nil {
		t.Fatalf("expected keyword dsn to be rejected")
	}
}
