package timeline

import "time"

// MaintainerResponse is the first qualifying maintainer reaction to a pull request
type MaintainerResponse struct {
	Found   bool
	At      time.Time
	By      string
	Event   Kind
	Latency float64 // hours since the pull request was opened
}

// ContributorResponse is the contributor's first follow-up after the maintainer response
type ContributorResponse struct {
	Found   bool
	At      time.Time
	Event   Kind
	Latency float64 // hours since the maintainer response
}

// Responses holds the per-event response flags and the first response of each side
type Responses struct {
	Maintainer  MaintainerResponse
	Contributor ContributorResponse

	// aligned with the timeline's events
	MaintainerFlags  []bool
	ContributorFlags []bool
}

func isMaintainerResponse(e Event, r Roles, res Resolution) bool {
	if !r.Maintainer || r.Bot || r.Contributor {
		return false
	}
	mergeReference := e.Kind == KindReferenced && res.IsMerged() && e.Time.Equal(res.MergedAt)
	if !maintainerResponseKinds.has(e.Kind) && !mergeReference {
		return false
	}
	return e.Time.After(res.OpenedAt)
}

func isContributorResponse(e Event, r Roles, m MaintainerResponse) bool {
	return r.Contributor &&
		contributorResponseKinds.has(e.Kind) &&
		m.Found && e.Time.After(m.At)
}

// Respond finds the first maintainer response and the first contributor response
// that follows it. roles must be aligned with t.Events.
func Respond(t Timeline, res Resolution, roles []Roles) Responses {
	out := Responses{
		MaintainerFlags:  make([]bool, len(t.Events)),
		ContributorFlags: make([]bool, len(t.Events)),
	}

	for i, e := range t.Events {
		if !isMaintainerResponse(e, roles[i], res) {
			continue
		}
		out.MaintainerFlags[i] = true
		if !out.Maintainer.Found {
			out.Maintainer = MaintainerResponse{
				Found:   true,
				At:      e.Time,
				By:      e.Actor,
				Event:   e.Kind,
				Latency: hours(e.Time.Sub(res.OpenedAt)),
			}
		}
	}

	for i, e := range t.Events {
		if !isContributorResponse(e, roles[i], out.Maintainer) {
			continue
		}
		out.ContributorFlags[i] = true
		if !out.Contributor.Found {
			out.Contributor = ContributorResponse{
				Found:   true,
				At:      e.Time,
				Event:   e.Kind,
				Latency: hours(e.Time.Sub(out.Maintainer.At)),
			}
		}
	}
	return out
}

func hours(d time.Duration) float64 {
	return d.Hours()
}
