package timeline

import "time"

// Ghost is the actor of events whose account was deleted or never recorded
const Ghost = "ghost"

// Detail is the kind-specific payload of an Event
type Detail interface {
	detail()
}

// Opened is the payload of the synthetic "pulled" event
type Opened struct {
	State   string
	Title   string
	Body    string
	HTMLURL string
}

// Commit is the payload of "committed"
type Commit struct {
	SHA string
}

// Reference is the payload of "referenced". SameRepository is set when the
// referencing commit lives in the pull request's own repository.
type Reference struct {
	CommitID       string
	SameRepository bool
}

// Closure is the payload of "closed" and "merged"
type Closure struct {
	CommitID string
}

// Comment is the payload of "commented", "line-commented" and "commit-commented"
type Comment struct {
	Body string
}

// Review is the payload of "reviewed"
type Review struct {
	State string
	Body  string
}

func (Opened) detail()    {}
func (Commit) detail()    {}
func (Reference) detail() {}
func (Closure) detail()   {}
func (Comment) detail()   {}
func (Review) detail()    {}

// Event is a normalized timeline entry
type Event struct {
	Kind        Kind
	Actor       string
	Time        time.Time
	PullNumber  int
	EventNumber int
	Detail      Detail
}

// State returns the pull state of a "pulled" event or the review state of a "reviewed" event
func (e Event) State() (string, bool) {
	switch d := e.Detail.(type) {
	case Opened:
		return d.State, d.State != ""
	case Review:
		return d.State, d.State != ""
	}
	return "", false
}

// CommitID returns the commit a closing, merging or referencing event points at
func (e Event) CommitID() (string, bool) {
	switch d := e.Detail.(type) {
	case Closure:
		return d.CommitID, d.CommitID != ""
	case Reference:
		return d.CommitID, d.CommitID != ""
	}
	return "", false
}

// Referenced returns the same-repository flag; it is only defined for "referenced" events
func (e Event) Referenced() (bool, bool) {
	if d, ok := e.Detail.(Reference); ok {
		return d.SameRepository, true
	}
	return false, false
}

// SHA returns the commit hash of a "committed" event
func (e Event) SHA() (string, bool) {
	if d, ok := e.Detail.(Commit); ok {
		return d.SHA, d.SHA != ""
	}
	return "", false
}
