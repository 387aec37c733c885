package timeline

import "time"

// Outcome is the terminal state of a pull request
type Outcome int

const (
	OutcomeOpen Outcome = iota
	OutcomeClosed
	OutcomeMerged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOpen:
		return "open"
	case OutcomeClosed:
		return "closed"
	case OutcomeMerged:
		return "merged"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of one pull request.
// Merge fields are set only for OutcomeMerged, close fields only for OutcomeClosed
// and only when a closed event exists.
type Resolution struct {
	Outcome  Outcome
	OpenedAt time.Time
	MergedAt time.Time
	MergedBy string
	ClosedAt time.Time
	ClosedBy string

	// Rule names the precedence rule that decided the outcome
	Rule string
}

func (r Resolution) IsOpen() bool   { return r.Outcome == OutcomeOpen }
func (r Resolution) IsClosed() bool { return r.Outcome == OutcomeClosed }
func (r Resolution) IsMerged() bool { return r.Outcome == OutcomeMerged }

// HasClose reports whether a closed-without-merge pull has a closing event
func (r Resolution) HasClose() bool {
	return r.Outcome == OutcomeClosed && r.ClosedBy != ""
}

// ResolvedAt is the merge time, else the close time
func (r Resolution) ResolvedAt() (time.Time, bool) {
	switch {
	case r.IsMerged():
		return r.MergedAt, true
	case r.HasClose():
		return r.ClosedAt, true
	}
	return time.Time{}, false
}

// ResolvedBy is the merging actor, else the closing actor
func (r Resolution) ResolvedBy() (string, bool) {
	switch {
	case r.IsMerged():
		return r.MergedBy, true
	case r.HasClose():
		return r.ClosedBy, true
	}
	return "", false
}

type resolutionRule struct {
	name  string
	match func(Event) bool
}

// mergeRules are evaluated in order for closed pull requests; the first rule with
// a matching event decides, using the first matching event. Squash and rebase
// merges do not always produce a merged event.
var mergeRules = []resolutionRule{
	{
		name:  "merged-event",
		match: func(e Event) bool { return e.Kind == KindMerged },
	},
	{
		name: "closed-with-commit",
		match: func(e Event) bool {
			_, ok := e.CommitID()
			return e.Kind == KindClosed && ok
		},
	},
	{
		name: "same-repository-reference",
		match: func(e Event) bool {
			same, ok := e.Referenced()
			return ok && same
		},
	},
}

const (
	ruleOpen            = "open"
	ruleClosedNoMerge   = "closed-without-merge"
	ruleClosedNoSignals = "closed-without-signal"
)

// Resolve derives the outcome of a pull request from its creation state and events
func Resolve(t Timeline) Resolution {
	creation, _ := t.Creation()
	r := Resolution{OpenedAt: creation.Time}

	if state, _ := creation.State(); state != "closed" {
		r.Outcome = OutcomeOpen
		r.Rule = ruleOpen
		return r
	}

	for _, rule := range mergeRules {
		for _, e := range t.Events {
			if rule.match(e) {
				r.Outcome = OutcomeMerged
				r.MergedAt = e.Time
				r.MergedBy = e.Actor
				r.Rule = rule.name
				return r
			}
		}
	}

	r.Outcome = OutcomeClosed
	r.Rule = ruleClosedNoSignals
	// last closed event, to cover reopen/close cycles
	for i := len(t.Events) - 1; i >= 0; i-- {
		if e := t.Events[i]; e.Kind == KindClosed {
			r.ClosedAt = e.Time
			r.ClosedBy = e.Actor
			r.Rule = ruleClosedNoMerge
			break
		}
	}
	return r
}
