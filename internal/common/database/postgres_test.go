package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPostgresConfig_URLs(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: "5432", User: "svc", Password: "p@ss", DBName: "adoption", SSLMode: "disable",
	}

	assert.Equal(t, "host=db port=5432 user=svc password=p@ss dbname=adoption sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://svc:p%40ss@db:5432/adoption?sslmode=disable", cfg.DatabaseURL())
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})
	serialization := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	deadlock := &pgconn.PgError{Code: pgerrcode.DeadlockDetected}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(serialization))
	assert.True(t, IsRetryable(serialization))
	assert.True(t, IsRetryable(deadlock))
	assert.False(t, IsRetryable(unique))
	assert.False(t, IsRetryable(errors.New("connection refused")))
}

func TestConstraintName(t *testing.T) {
	err := fmt.Errorf("save: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "idx_pets_tag"})
	assert.Equal(t, "idx_pets_tag", ConstraintName(err))
	assert.Equal(t, "", ConstraintName(errors.New("boom")))
}
