package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-autopilot/internal/types"
)

func TestTaskRegistry(t *testing.T) {
	for _, name := range []string{TaskScrape, TaskMatch, TaskAutoDraft, TaskSend, TaskSweep} {
		def, ok := TaskRegistry[name]
		require.True(t, ok, "task %s should be in registry", name)
		assert.Equal(t, name, def.Name)
		assert.NotEmpty(t, def.Description)
		for _, dep := range def.Dependencies {
			_, ok := TaskRegistry[dep]
			assert.True(t, ok, "dependency %s of %s should be registered", dep, name)
		}
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{TaskScrape, TaskMatch, TaskAutoDraft, TaskSend, TaskSweep}, Names())
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"single", []string{TaskSend}, []string{TaskSend}},
		{"reversed chain", []string{TaskSend, TaskMatch, TaskScrape}, []string{TaskScrape, TaskMatch, TaskSend}},
		{"transitive gap", []string{TaskSend, TaskScrape}, []string{TaskScrape, TaskSend}},
		{"independent", []string{TaskSweep, TaskMatch}, []string{TaskMatch, TaskSweep}},
		{"duplicates", []string{TaskMatch, TaskMatch}, []string{TaskMatch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_UnknownTask(t *testing.T) {
	_, err := Plan([]string{TaskScrape, "deploy"})
	var unknown *UnknownTaskError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "deploy", unknown.Name)
}

func TestDependencyError(t *testing.T) {
	err := &DependencyError{Task: TaskSend, MissingDependencies: []string{TaskScrape}}
	assert.Contains(t, err.Error(), "missing dependencies")
}

func stub(status types.BatchStatus, calls *[]string, name string) TaskFunc {
	return func(ctx context.Context) *types.BatchResult {
		*calls = append(*calls, name)
		r := types.NewBatchResult(name)
		r.Status = status
		return r.Finish()
	}
}

func TestRegistry_RunAll(t *testing.T) {
	var calls []string
	r := NewRegistry()
	require.NoError(t, r.Register(TaskScrape, stub(types.BatchCompleted, &calls, TaskScrape)))
	require.NoError(t, r.Register(TaskMatch, stub(types.BatchPartial, &calls, TaskMatch)))
	require.NoError(t, r.Register(TaskSend, stub(types.BatchCompleted, &calls, TaskSend)))

	results, err := r.RunAll(context.Background(), []string{TaskSend, TaskMatch, TaskScrape})
	require.NoError(t, err)
	assert.Equal(t, []string{TaskScrape, TaskMatch, TaskSend}, calls)
	require.Len(t, results, 3)
	assert.Equal(t, types.BatchPartial, results[1].Status)
}

func TestRegistry_RunAll_FailedDependency(t *testing.T) {
	var calls []string
	r := NewRegistry()
	require.NoError(t, r.Register(TaskScrape, stub(types.BatchFailed, &calls, TaskScrape)))
	require.NoError(t, r.Register(TaskMatch, stub(types.BatchCompleted, &calls, TaskMatch)))
	require.NoError(t, r.Register(TaskSweep, stub(types.BatchCompleted, &calls, TaskSweep)))

	results, err := r.RunAll(context.Background(), []string{TaskScrape, TaskMatch, TaskSweep})
	require.NoError(t, err)
	assert.Equal(t, []string{TaskScrape, TaskSweep}, calls)
	require.Len(t, results, 3)
	assert.Equal(t, types.BatchSkipped, results[1].Status)
	assert.Contains(t, results[1].Reason, TaskScrape)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	var unknown *UnknownTaskError
	assert.ErrorAs(t, r.Register("deploy", nil), &unknown)

	_, err := r.Run(context.Background(), TaskSend)
	assert.ErrorContains(t, err, "not configured")

	_, ok := r.Get(TaskSend)
	assert.False(t, ok)
}
