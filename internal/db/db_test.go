package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, expected: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), expected: true},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsUniqueViolation(tt.err))
		})
	}
}

func TestSchema_DeclaresAllTables(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"users", "global_jobs", "user_jobs", "resumes", "job_applications", "system_locks", "system_logs"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.Contains(t, schema, "UNIQUE (source, source_id)")
	assert.Contains(t, schema, "UNIQUE (user_id, global_job_id)")
	assert.Contains(t, schema, "user_job_id       UUID NOT NULL UNIQUE")
}

func TestUser_AcceptsRemote(t *testing.T) {
	tests := []struct {
		workType string
		expected bool
	}{
		{"", true},
		{WorkTypeAny, true},
		{WorkTypeRemote, true},
		{WorkTypeHybrid, true},
		{WorkTypeOnsite, false},
	}
	for _, tt := range tests {
		t.Run(tt.workType, func(t *testing.T) {
			u := &User{WorkType: tt.workType}
			assert.Equal(t, tt.expected, u.AcceptsRemote())
		})
	}
}

func TestStatusStrings(t *testing.T) {
	got := statusStrings([]ApplicationStatus{StatusDraft, StatusReady})
	assert.Equal(t, []string{"DRAFT", "READY"}, got)
}

func TestNonNil(t *testing.T) {
	assert.NotNil(t, nonNil(nil))
	assert.Empty(t, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}
