package timeline

import "sort"

// Timeline is the ordered event sequence of one pull request
type Timeline struct {
	PullNumber int
	Events     []Event
}

// Creation returns the synthetic "pulled" event that opened the pull request
func (t Timeline) Creation() (Event, bool) {
	for _, e := range t.Events {
		if e.Kind == KindPulled {
			return e, true
		}
	}
	return Event{}, false
}

// Contributor is the login that opened the pull request
func (t Timeline) Contributor() string {
	if e, ok := t.Creation(); ok {
		return e.Actor
	}
	return ""
}

// Assembly holds a project's timelines plus the project-wide chronological stream
type Assembly struct {
	Project   string
	Timelines []Timeline
	Stream    []Event
}

// Assemble groups normalized events per pull (ordered by pull number) and merges
// them into one stream ordered by time, pull number and event number.
func Assemble(project string, normalized map[int][]Event) *Assembly {
	numbers := make([]int, 0, len(normalized))
	total := 0
	for n, events := range normalized {
		numbers = append(numbers, n)
		total += len(events)
	}
	sort.Ints(numbers)

	a := &Assembly{
		Project:   project,
		Timelines: make([]Timeline, 0, len(numbers)),
		Stream:    make([]Event, 0, total),
	}
	for _, n := range numbers {
		events := normalized[n]
		a.Timelines = append(a.Timelines, Timeline{PullNumber: n, Events: events})
		a.Stream = append(a.Stream, events...)
	}

	sort.SliceStable(a.Stream, func(i, j int) bool {
		x, y := a.Stream[i], a.Stream[j]
		if !x.Time.Equal(y.Time) {
			return x.Time.Before(y.Time)
		}
		if x.PullNumber != y.PullNumber {
			return x.PullNumber < y.PullNumber
		}
		return x.EventNumber < y.EventNumber
	})
	return a
}

// Timeline returns the timeline of one pull request
func (a *Assembly) Timeline(number int) (Timeline, bool) {
	i := sort.Search(len(a.Timelines), func(i int) bool {
		return a.Timelines[i].PullNumber >= number
	})
	if i < len(a.Timelines) && a.Timelines[i].PullNumber == number {
		return a.Timelines[i], true
	}
	return Timeline{}, false
}
