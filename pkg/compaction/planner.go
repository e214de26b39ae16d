package compaction

import "sync/atomic"

// Job is what a Planner produces for one (kind, compactable) pair: either
// route it to a named internal executor within the owning service, or
// publish it to a shared external queue.
type Job struct {
	Kind        CompactionKind
	Compactable Compactable
	// Priority orders external offers within a queue; higher runs first.
	Priority int64
	// ExternalQueue routes the job externally when non-empty; otherwise
	// InternalExecutor names the internal pool within the owning service.
	ExternalQueue    string
	InternalExecutor string
}

// Planner is the pluggable policy that selects files to merge and decides
// whether a compactable needs compacting at all for a given kind. Policy
// tuning is explicitly out of scope (spec §1 Non-goals); this package ships
// one reference implementation, DefaultPlanner, sufficient to make the
// manager schedulable and testable.
type Planner interface {
	// Plan returns a Job and true if this compactable should be compacted
	// for kind right now, or the zero Job and false if there is nothing to
	// do. Plan must not block.
	Plan(kind CompactionKind, c Compactable) (Job, bool)
	// Reconfigure applies new planner options in place, without losing
	// planner-internal state tied to in-flight jobs.
	Reconfigure(options map[string]string) error
}

// PlannerFactory builds a Planner instance for a given class name.
type PlannerFactory func(class string, options map[string]string) (Planner, error)

// plannerFactories is the process-wide registry of planner classes,
// analogous to reflectively instantiating a configured Java class name.
var plannerFactories = map[string]PlannerFactory{
	PlannerClassDefault: newDefaultPlanner,
}

// RegisterPlanner adds a planner class to the registry. Intended to be
// called from init() by packages providing additional planners.
func RegisterPlanner(class string, factory PlannerFactory) {
	plannerFactories[class] = factory
}

func instantiatePlanner(class string, options map[string]string) (Planner, error) {
	factory, ok := plannerFactories[class]
	if !ok {
		return nil, ErrUnknownPlanner
	}
	return factory(class, options)
}

// DefaultPlanner is a minimal, deterministic reference policy: it always
// offers to compact whatever it is asked about, round-robining across the
// configured executors (internal pools by default, or a single external
// queue when options["queue"] names one). It exists so the manager has a
// genuine, testable scheduling partner; real tuning is a Non-goal.
type DefaultPlanner struct {
	queue      string
	executors  []ExecutorSpec
	nextPool   atomic.Int64
	defaultPri int64
}

func newDefaultPlanner(_ string, options map[string]string) (Planner, error) {
	p := &DefaultPlanner{defaultPri: 1}
	if err := p.Reconfigure(options); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *DefaultPlanner) Reconfigure(options map[string]string) error {
	specs, err := parseExecutorSpecs(options["executors"])
	if err != nil {
		return err
	}
	p.executors = specs
	p.queue = options["queue"]
	return nil
}

func (p *DefaultPlanner) Plan(kind CompactionKind, c Compactable) (Job, bool) {
	job := Job{Kind: kind, Compactable: c, Priority: p.defaultPri}

	if p.queue != "" {
		job.ExternalQueue = p.queue
		return job, true
	}

	if len(p.executors) == 0 {
		job.InternalExecutor = "default"
		return job, true
	}

	idx := int(p.nextPool.Add(1)-1) % len(p.executors)
	spec := p.executors[idx]
	if spec.Queue != "" {
		job.ExternalQueue = spec.Queue
	} else {
		job.InternalExecutor = spec.Name
	}
	return job, true
}
