package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-agent/internal/workflow"
)

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.25, -1, 3.5e-5, 0}
	lit := encodeVector(v)
	assert.Equal(t, "[0.25,-1,3.5e-05,0]", lit)

	got, err := decodeVector(lit)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestDecodeVector(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []float32
		wantErr bool
	}{
		{name: "null column", in: "", want: nil},
		{name: "empty vector", in: "[]", want: []float32{}},
		{name: "spaces", in: " [1, 2] ", want: []float32{1, 2}},
		{name: "missing brackets", in: "1,2", wantErr: true},
		{name: "bad component", in: "[1,x]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeVector(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "wrapped deadlock", err: fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "no rows", err: pgx.ErrNoRows, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestPersistenceError(t *testing.T) {
	err := persistenceError("update_task", &pgconn.PgError{Code: "40001"})
	var pe *workflow.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "update_task", pe.Op)
	assert.True(t, pe.Transient)
	assert.True(t, workflow.IsTransient(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now \\ ok`, escapeLike(`50% off_now \ ok`))
}

func TestSchemaSQL(t *testing.T) {
	schema := SchemaSQL()
	for _, table := range []string{"channels", "style_samples", "materials", "brand_assets", "editors", "writing_tasks", "task_logs"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schema, "CREATE EXTENSION IF NOT EXISTS vector")
}

func TestJSONColumns(t *testing.T) {
	type profile struct{ Tone string }

	data, err := encodeJSON[profile](nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = encodeJSON(&profile{Tone: "warm"})
	require.NoError(t, err)

	var got *profile
	require.NoError(t, decodeJSON(data, &got))
	require.NotNil(t, got)
	assert.Equal(t, "warm", got.Tone)

	require.NoError(t, decodeJSON(nil, &got))
	assert.Nil(t, got)
}
