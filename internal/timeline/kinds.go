package timeline

// Kind is the value of a raw record's "event" field
type Kind string

const (
	KindPulled             Kind = "pulled"
	KindCommitted          Kind = "committed"
	KindReferenced         Kind = "referenced"
	KindClosed             Kind = "closed"
	KindMerged             Kind = "merged"
	KindReopened           Kind = "reopened"
	KindReviewed           Kind = "reviewed"
	KindCommented          Kind = "commented"
	KindLineCommented      Kind = "line-commented"
	KindCommitCommented    Kind = "commit-commented"
	KindHeadRefForcePushed Kind = "head_ref_force_pushed"

	KindAddedToProject               Kind = "added_to_project"
	KindConvertedNoteToIssue         Kind = "converted_note_to_issue"
	KindDeployed                     Kind = "deployed"
	KindDeploymentEnvironmentChanged Kind = "deployment_environment_changed"
	KindLocked                       Kind = "locked"
	KindMovedColumnsInProject        Kind = "moved_columns_in_project"
	KindPinned                       Kind = "pinned"
	KindRemovedFromProject           Kind = "removed_from_project"
	KindReviewDismissed              Kind = "review_dismissed"
	KindTransferred                  Kind = "transferred"
	KindUnlocked                     Kind = "unlocked"
	KindUnpinned                     Kind = "unpinned"
	KindUserBlocked                  Kind = "user_blocked"
)

type kindSet map[Kind]struct{}

func newKindSet(kinds ...Kind) kindSet {
	s := make(kindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

func (s kindSet) has(k Kind) bool {
	_, ok := s[k]
	return ok
}

// compositeKinds carry a list of comments that are expanded into one event each
var compositeKinds = newKindSet(KindLineCommented, KindCommitCommented)

// administrativeKinds can only be performed by someone with admin rights on the project
var administrativeKinds = newKindSet(
	KindAddedToProject,
	KindConvertedNoteToIssue,
	KindDeployed,
	KindDeploymentEnvironmentChanged,
	KindLocked,
	KindMovedColumnsInProject,
	KindPinned,
	KindRemovedFromProject,
	KindReviewDismissed,
	KindTransferred,
	KindUnlocked,
	KindUnpinned,
	KindUserBlocked,
)

var maintainerResponseKinds = newKindSet(
	KindCommented,
	KindReviewed,
	KindLineCommented,
	KindCommitCommented,
	KindMerged,
	KindClosed,
	KindReopened,
)

var contributorResponseKinds = newKindSet(
	KindCommitted,
	KindHeadRefForcePushed,
	KindCommented,
	KindReviewed,
	KindLineCommented,
	KindCommitCommented,
	KindClosed,
	KindReopened,
)

// IsAdministrative reports whether k is one of the admin-only event kinds
func IsAdministrative(k Kind) bool {
	return administrativeKinds.has(k)
}
