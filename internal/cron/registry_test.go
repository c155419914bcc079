package cron

import (
	"context"
	"testing"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	registry := NewRegistry(namedJob("listing-expiry"))
	registry.Register(namedJob("second"))

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name() != "listing-expiry" || jobs[1].Name() != "second" {
		t.Fatalf("unexpected order %s, %s", jobs[0].Name(), jobs[1].Name())
	}

	jobs[0] = namedJob("mutated")
	if registry.Jobs()[0].Name() != "listing-expiry" {
		t.Fatal("Jobs must return a copy")
	}
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(nil)
	if n := len(registry.Jobs()); n != 0 {
		t.Fatalf("expected no jobs, got %d", n)
	}
}
