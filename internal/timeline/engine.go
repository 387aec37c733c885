package timeline

import (
	"encoding/json"
	"io"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
)

// Input is the raw material for one project
type Input struct {
	Project   string
	Pulls     map[int]json.RawMessage   // pull number -> pull metadata
	Timelines map[int][]json.RawMessage // pull number -> raw timeline events
	Commits   map[string]json.RawMessage
	Bots      []string
	Owners    []string
}

// Pull is the fully annotated timeline of one pull request
type Pull struct {
	Timeline
	Resolution Resolution
	Roles      []Roles
	Responses  Responses
}

// Result is the derived event log of one project
type Result struct {
	Project  string
	Pulls    []*Pull // ordered by pull number
	Failures []error // one per pull that could not be derived, ordered by pull number
	Roles    *RoleBook
}

// Pull returns the derived pull with the given number
func (r *Result) Pull(number int) (*Pull, bool) {
	i := sort.Search(len(r.Pulls), func(i int) bool {
		return r.Pulls[i].PullNumber >= number
	})
	if i < len(r.Pulls) && r.Pulls[i].PullNumber == number {
		return r.Pulls[i], true
	}
	return nil, false
}

// Events counts derived events across all pulls
func (r *Result) Events() int {
	n := 0
	for _, p := range r.Pulls {
		n += len(p.Events)
	}
	return n
}

// Engine runs the derivation stages. It holds no per-run state and is safe for
// concurrent use across projects.
type Engine struct {
	workers int
	logger  logrus.FieldLogger
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers bounds the number of pulls processed concurrently
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine
func NewEngine(opts ...Option) *Engine {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	e := &Engine{
		workers: runtime.GOMAXPROCS(0),
		logger:  silent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type normalized struct {
	number int
	events []Event
	err    error
}

// Derive turns a project's raw input into its annotated timelines. Malformed pulls
// are reported in Result.Failures and left out of every other computation.
func (e *Engine) Derive(in *Input) (*Result, error) {
	if in == nil {
		return nil, perrors.InternalError("derive called with nil input")
	}
	log := e.logger.WithField("project", in.Project)

	numbers := pullNumbers(in)
	slots := make([]normalized, len(numbers))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, n := range numbers {
		g.Go(func() error {
			slots[i] = e.normalize(in, n)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Project: in.Project}
	good := make(map[int][]Event, len(slots))
	for _, s := range slots {
		if s.err != nil {
			result.Failures = append(result.Failures, s.err)
			continue
		}
		good[s.number] = s.events
	}

	assembly := Assemble(in.Project, good)

	resolutions := make([]Resolution, len(assembly.Timelines))
	for i, t := range assembly.Timelines {
		g.Go(func() error {
			resolutions[i] = Resolve(t)
			return nil
		})
	}
	_ = g.Wait()

	// every pull must be resolved before any maintainer can be identified
	book := NewRoleBook(assembly, resolutions, in.Bots, in.Owners)
	result.Roles = book

	result.Pulls = make([]*Pull, len(assembly.Timelines))
	for i, t := range assembly.Timelines {
		g.Go(func() error {
			roles := book.Classify(t)
			result.Pulls[i] = &Pull{
				Timeline:   t,
				Resolution: resolutions[i],
				Roles:      roles,
				Responses:  Respond(t, resolutions[i], roles),
			}
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(logrus.Fields{
		"pulls":       len(result.Pulls),
		"events":      len(assembly.Stream),
		"failures":    len(result.Failures),
		"maintainers": len(book.Maintainers()),
	}).Debug("Derived project timelines")

	return result, nil
}

func (e *Engine) normalize(in *Input, n int) normalized {
	pull, hasPull := in.Pulls[n]
	raw, hasTimeline := in.Timelines[n]

	var err *perrors.Error
	switch {
	case !hasPull:
		err = perrors.ValidationError("timeline has no pull metadata")
	case !hasTimeline:
		err = perrors.ValidationError("pull has no timeline record")
	}
	if err != nil {
		return normalized{number: n, err: err.WithContext("project", in.Project).WithContext("pull_number", n)}
	}

	events, nerr := Normalize(n, pull, raw, in.Commits)
	if nerr != nil {
		var pe *perrors.Error
		if perr, ok := nerr.(*perrors.Error); ok {
			pe = perr
		} else {
			pe = perrors.InvalidInput(nerr, "pull could not be normalized")
		}
		return normalized{number: n, err: pe.WithContext("project", in.Project).WithContext("pull_number", n)}
	}
	return normalized{number: n, events: events}
}

func pullNumbers(in *Input) []int {
	seen := make(map[int]struct{}, len(in.Pulls))
	numbers := make([]int, 0, len(in.Pulls))
	for n := range in.Pulls {
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	for n := range in.Timelines {
		if _, ok := seen[n]; !ok {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers
}
