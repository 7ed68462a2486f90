package cron

import (
	"context"
	"fmt"
)

// Job is one maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in execution order. Names are unique because they
// label metrics and the per-job log context.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry registers jobs in order, skipping nils. It returns an error on duplicate names.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	if _, exists := r.names[name]; exists {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}

// Select returns a registry holding only the named jobs, in registry order.
// No names selects everything. Unknown names are an error.
func (r *Registry) Select(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.names[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %v)", name, r.Names())
		}
		want[name] = true
	}
	picked := &Registry{names: map[string]struct{}{}}
	for _, job := range r.jobs {
		if want[job.Name()] {
			_ = picked.Register(job)
		}
	}
	return picked, nil
}
