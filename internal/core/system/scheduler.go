package system

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stagehand/editor/internal/console"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrSystemNotFound  = errors.New("system not found")
	ErrDependencyCycle = errors.New("dependency cycle")
	ErrDuplicateSystem = errors.New("duplicate system name")
)

// ExecutionError wraps the error a system returned from Execute.
type ExecutionError struct {
	System string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("system %q failed: %v", e.System, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Scheduler runs two independent buckets of systems: fixed systems, stepped
// from an accumulator at a constant dt, and variable systems, run once per
// frame. Each bucket executes in a topological order of its dependencies.
type Scheduler struct {
	fixed    []System
	variable []System

	fixedOrder    []System
	variableOrder []System
	fixedReady    bool
	variableReady bool

	step        time.Duration
	maxSteps    int
	accumulator time.Duration
	frame       uint64
	fixedTick   uint64

	sink *console.Sink
	log  *zap.Logger
}

// NewScheduler creates a scheduler with the given fixed step. maxSteps caps
// the fixed ticks emitted per frame; 0 means no cap.
func NewScheduler(step time.Duration, maxSteps int, sink *console.Sink, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		fixed:    make([]System, 0, 8),
		variable: make([]System, 0, 8),
		step:     step,
		maxSteps: maxSteps,
		sink:     sink,
		log:      log,
	}
}

// Register adds a system to its bucket and invalidates the resolved order.
func (s *Scheduler) Register(sys System) {
	if sys.FixedTimestep() {
		s.fixed = append(s.fixed, sys)
		s.fixedReady = false
	} else {
		s.variable = append(s.variable, sys)
		s.variableReady = false
	}
}

func (s *Scheduler) Resolved() bool { return s.fixedReady && s.variableReady }

func (s *Scheduler) FixedStep() time.Duration { return s.step }

// Resolve computes the execution order of both buckets. The buckets are
// independent: a bucket that resolves keeps its order even when the other
// one fails.
func (s *Scheduler) Resolve() error {
	return multierr.Append(s.resolveFixed(), s.resolveVariable())
}

func (s *Scheduler) resolveFixed() error {
	if s.fixedReady {
		return nil
	}
	order, err := resolveBucket(s.fixed)
	if err != nil {
		return fmt.Errorf("fixed bucket: %w", err)
	}
	s.fixedOrder, s.fixedReady = order, true
	return nil
}

func (s *Scheduler) resolveVariable() error {
	if s.variableReady {
		return nil
	}
	order, err := resolveBucket(s.variable)
	if err != nil {
		return fmt.Errorf("variable bucket: %w", err)
	}
	s.variableOrder, s.variableReady = order, true
	return nil
}

// FixedOrder returns the resolved fixed bucket order by name.
func (s *Scheduler) FixedOrder() []string { return names(s.fixedOrder) }

// VariableOrder returns the resolved variable bucket order by name.
func (s *Scheduler) VariableOrder() []string { return names(s.variableOrder) }

// ExecuteFixed runs the fixed bucket once with dt. The first failing system
// aborts the rest of the bucket.
func (s *Scheduler) ExecuteFixed(ctx *Context, dt time.Duration) error {
	if err := s.resolveFixed(); err != nil {
		return err
	}
	ctx.FixedTick = s.fixedTick
	s.fixedTick++
	return s.run(s.fixedOrder, ctx, dt)
}

// ExecuteVariable runs the variable bucket once with dt.
func (s *Scheduler) ExecuteVariable(ctx *Context, dt time.Duration) error {
	if err := s.resolveVariable(); err != nil {
		return err
	}
	ctx.Frame = s.frame
	s.frame++
	return s.run(s.variableOrder, ctx, dt)
}

// Tick advances one frame: when runFixed is set the frame time is added to
// the accumulator and drained in fixed steps, then the variable bucket runs.
// A failure in the fixed bucket stops further fixed steps this frame but the
// variable bucket still runs. Both errors are returned combined.
func (s *Scheduler) Tick(ctx *Context, frameDt time.Duration, runFixed bool) (int, error) {
	var errs error
	steps := 0
	if runFixed && s.step > 0 {
		s.accumulator += frameDt
		for s.accumulator >= s.step {
			if s.maxSteps > 0 && steps >= s.maxSteps {
				s.log.Debug("fixed step budget exhausted, dropping backlog",
					zap.Duration("backlog", s.accumulator))
				s.accumulator = 0
				break
			}
			s.accumulator -= s.step
			steps++
			if err := s.ExecuteFixed(ctx, s.step); err != nil {
				errs = multierr.Append(errs, err)
				break
			}
		}
	}
	errs = multierr.Append(errs, s.ExecuteVariable(ctx, frameDt))
	return steps, errs
}

// ResetAccumulator discards unconsumed frame time.
func (s *Scheduler) ResetAccumulator() { s.accumulator = 0 }

func (s *Scheduler) run(order []System, ctx *Context, dt time.Duration) error {
	for _, sys := range order {
		if err := sys.Execute(ctx, dt); err != nil {
			s.log.Error("system failed", zap.String("system", sys.Name()), zap.Error(err))
			if s.sink != nil {
				s.sink.Errorf("system %s: %v", sys.Name(), err)
			}
			return &ExecutionError{System: sys.Name(), Err: err}
		}
	}
	return nil
}

// resolveBucket orders systems with Kahn's algorithm. Ready systems are
// consumed first-in first-out, seeded in insertion order, so independent
// systems keep their registration order within a dependency level.
func resolveBucket(systems []System) ([]System, error) {
	index := make(map[string]int, len(systems))
	for i, sys := range systems {
		if _, dup := index[sys.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSystem, sys.Name())
		}
		index[sys.Name()] = i
	}

	indegree := make([]int, len(systems))
	dependents := make([][]int, len(systems))
	for i, sys := range systems {
		for _, dep := range sys.Dependencies() {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrSystemNotFound, sys.Name(), dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(systems))
	for i := range systems {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]System, 0, len(systems))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, systems[i])
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) != len(systems) {
		var stuck []string
		for i, sys := range systems {
			if indegree[i] > 0 {
				stuck = append(stuck, sys.Name())
			}
		}
		return nil, fmt.Errorf("%w among [%s]", ErrDependencyCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}

func names(systems []System) []string {
	out := make([]string, len(systems))
	for i, sys := range systems {
		out[i] = sys.Name()
	}
	return out
}
