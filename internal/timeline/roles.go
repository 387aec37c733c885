package timeline

import (
	"sort"
	"strings"
	"time"
)

// Roles are the per-event role flags of an event's actor
type Roles struct {
	Contributor bool
	Maintainer  bool
	Bot         bool
}

// RoleBook answers role questions for one project. It is built once from the
// whole project and never changes afterwards.
type RoleBook struct {
	since  map[string]time.Time
	bots   map[string]struct{}
	owners map[string]struct{}
}

// NewRoleBook computes, for every actor, the earliest time they did something only
// a maintainer can do. resolutions is aligned with a.Timelines.
func NewRoleBook(a *Assembly, resolutions []Resolution, bots, owners []string) *RoleBook {
	b := &RoleBook{
		since:  make(map[string]time.Time),
		bots:   loginSet(bots),
		owners: loginSet(owners),
	}

	contributors := make(map[int]string, len(a.Timelines))
	for i, t := range a.Timelines {
		contributor := t.Contributor()
		contributors[t.PullNumber] = contributor

		if i >= len(resolutions) {
			continue
		}
		res := resolutions[i]
		by, ok := res.ResolvedBy()
		if !ok {
			continue
		}
		// merging anyone's pull, or closing someone else's
		if res.IsMerged() || by != contributor {
			at, _ := res.ResolvedAt()
			b.observe(by, at)
		}
	}

	for _, e := range a.Stream {
		if IsAdministrative(e.Kind) || (e.Kind == KindClosed && e.Actor != contributors[e.PullNumber]) {
			b.observe(e.Actor, e.Time)
		}
	}
	return b
}

func (b *RoleBook) observe(actor string, at time.Time) {
	if actor == Ghost || actor == "" {
		return
	}
	if cur, ok := b.since[actor]; !ok || at.Before(cur) {
		b.since[actor] = at
	}
}

func loginSet(logins []string) map[string]struct{} {
	s := make(map[string]struct{}, len(logins))
	for _, l := range logins {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			s[l] = struct{}{}
		}
	}
	return s
}

// MaintainerSince returns the time from which actor is a maintainer
func (b *RoleBook) MaintainerSince(actor string) (time.Time, bool) {
	t, ok := b.since[actor]
	return t, ok
}

// IsMaintainer reports whether actor is a maintainer at time at
func (b *RoleBook) IsMaintainer(actor string, at time.Time) bool {
	since, ok := b.since[actor]
	return ok && !at.Before(since)
}

// IsBot reports whether actor is automation, or an owner account treated as such
func (b *RoleBook) IsBot(actor string) bool {
	if strings.HasSuffix(actor, "bot") || strings.HasSuffix(actor, "[bot]") {
		return true
	}
	if _, ok := b.bots[actor]; ok {
		return true
	}
	_, ok := b.owners[actor]
	return ok
}

// Maintainers lists every actor that ever became a maintainer, sorted
func (b *RoleBook) Maintainers() []string {
	out := make([]string, 0, len(b.since))
	for actor := range b.since {
		out = append(out, actor)
	}
	sort.Strings(out)
	return out
}

// Classify returns the role flags of every event of t, aligned with t.Events
func (b *RoleBook) Classify(t Timeline) []Roles {
	contributor := t.Contributor()
	roles := make([]Roles, len(t.Events))
	for i, e := range t.Events {
		roles[i] = Roles{
			Contributor: e.Actor == contributor,
			Maintainer:  b.IsMaintainer(e.Actor, e.Time),
			Bot:         b.IsBot(e.Actor),
		}
	}
	return roles
}
