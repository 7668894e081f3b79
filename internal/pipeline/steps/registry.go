// Package steps names the scheduled batch tasks, records the order they
// depend on and runs them for both the CLI and the cron endpoints.
package steps

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/jonathan/job-autopilot/internal/types"
)

// Task names.
const (
	TaskScrape    = "scrape"
	TaskMatch     = "match"
	TaskAutoDraft = "auto-draft"
	TaskSend      = "send"
	TaskSweep     = "sweep"
)

// TaskDefinition defines metadata for a batch task.
type TaskDefinition struct {
	Name         string
	Description  string
	Dependencies []string
}

// TaskFunc runs one batch task.
type TaskFunc func(ctx context.Context) *types.BatchResult

// TaskRegistry holds all task definitions.
var TaskRegistry = map[string]TaskDefinition{
	TaskScrape: {
		Name:         TaskScrape,
		Description:  "aggregate keywords, scrape every source and upsert the postings",
		Dependencies: []string{},
	},
	TaskMatch: {
		Name:         TaskMatch,
		Description:  "score recently seen postings against every active user",
		Dependencies: []string{TaskScrape},
	},
	TaskAutoDraft: {
		Name:         TaskAutoDraft,
		Description:  "draft and queue applications for full-auto users",
		Dependencies: []string{TaskMatch},
	},
	TaskSend: {
		Name:         TaskSend,
		Description:  "deliver due applications under the send lock",
		Dependencies: []string{TaskAutoDraft},
	},
	TaskSweep: {
		Name:         TaskSweep,
		Description:  "deactivate stale postings, recover stuck sends and prune logs",
		Dependencies: []string{},
	},
}

// UnknownTaskError is returned for a name missing from TaskRegistry.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task: %s", e.Name)
}

// DependencyError reports that a task was not run because a dependency in
// the same invocation did not complete.
type DependencyError struct {
	Task                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing dependencies: %v", e.MissingDependencies)
}

// Names returns every registered task name in dependency order.
func Names() []string {
	names := make([]string, 0, len(TaskRegistry))
	for name := range TaskRegistry {
		names = append(names, name)
	}
	ordered, _ := Plan(names)
	return ordered
}

// Plan orders the requested tasks so that each one runs after any of its
// dependencies that were also requested. Unrelated tasks keep a stable,
// alphabetical order.
func Plan(names []string) ([]string, error) {
	requested := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := TaskRegistry[name]; !ok {
			return nil, &UnknownTaskError{Name: name}
		}
		requested[name] = true
	}

	sorted := make([]string, 0, len(requested))
	for name := range requested {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var order []string
	visited := make(map[string]bool, len(sorted))
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range dependencyClosure(name) {
			if requested[dep] {
				visit(dep)
			}
		}
		order = append(order, name)
	}
	for _, name := range sorted {
		visit(name)
	}
	return order, nil
}

// dependencyClosure returns every transitive dependency of a task.
func dependencyClosure(name string) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(n string)
	walk = func(n string) {
		for _, dep := range TaskRegistry[n].Dependencies {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
				out = append(out, dep)
			}
		}
	}
	walk(name)
	return out
}

// Registry binds task names to their implementations.
type Registry struct {
	tasks map[string]TaskFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: map[string]TaskFunc{}}
}

// Register binds fn to a task from TaskRegistry.
func (r *Registry) Register(name string, fn TaskFunc) error {
	if _, ok := TaskRegistry[name]; !ok {
		return &UnknownTaskError{Name: name}
	}
	r.tasks[name] = fn
	return nil
}

// Get returns the implementation of a task.
func (r *Registry) Get(name string) (TaskFunc, bool) {
	fn, ok := r.tasks[name]
	return fn, ok
}

// Run runs a single task.
func (r *Registry) Run(ctx context.Context, name string) (*types.BatchResult, error) {
	if _, ok := TaskRegistry[name]; !ok {
		return nil, &UnknownTaskError{Name: name}
	}
	fn, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("task %s is not configured", name)
	}
	return fn(ctx), nil
}

// RunAll runs the requested tasks in dependency order. A task whose
// dependency failed in this invocation is skipped with a DependencyError
// reason; skipped or partial dependencies do not block it.
func (r *Registry) RunAll(ctx context.Context, names []string) ([]*types.BatchResult, error) {
	order, err := Plan(names)
	if err != nil {
		return nil, err
	}

	failed := map[string]bool{}
	results := make([]*types.BatchResult, 0, len(order))
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		var missing []string
		for _, dep := range dependencyClosure(name) {
			if failed[dep] {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			failed[name] = true
			depErr := &DependencyError{Task: name, MissingDependencies: missing}
			results = append(results, types.NewBatchResult(name).Skip(depErr.Error()).Finish())
			continue
		}

		res, err := r.Run(ctx, name)
		if err != nil {
			return results, err
		}
		if res.Status == types.BatchFailed {
			failed[name] = true
		}
		log.Printf("[tasks] %s: %s", name, res.Status)
		results = append(results, res)
	}
	return results, nil
}
