package voting

import (
	"math"
	"time"

	"github.com/snowledge-labs/snowvote/src/shared/types"
)

// ProposalWindow is how long a proposal stays open for voting.
const ProposalWindow = 5 * 24 * time.Hour

// Resolution reasons
const (
	ReasonByVote       = "by_vote"
	ReasonByExpiration = "by_expiration"
)

// Tally holds the current vote counts for one proposal.
type Tally struct {
	SubjectFor     int
	SubjectAgainst int
	FormatFor      int
	FormatAgainst  int
	Cast           int
}

// Outcome is the decision returned by a policy. The zero value means
// "no change".
type Outcome struct {
	Resolved       bool
	Status         string
	Reason         string
	OverrideFormat bool
}

// Policy decides whether a proposal transitions to a terminal status.
// Implementations must be pure: no I/O, no clock reads.
type Policy interface {
	Decide(p *types.Proposal, t Tally, members int, now time.Time) Outcome
}

// ThresholdPolicy resolves as soon as a fixed number of subject votes is
// reached, regardless of community size. Used for the Discord reaction path.
type ThresholdPolicy struct {
	AcceptVotes int
	RejectVotes int
}

func (pol ThresholdPolicy) Decide(p *types.Proposal, t Tally, members int, now time.Time) Outcome {
	if p.Status != types.StatusInProgress {
		return Outcome{}
	}
	if t.SubjectAgainst >= pol.RejectVotes {
		return Outcome{Resolved: true, Status: types.StatusRejected, Reason: ReasonByVote}
	}
	if t.SubjectFor >= pol.AcceptVotes {
		// A lost or tied format vote leaves the format undecided.
		return Outcome{
			Resolved:       true,
			Status:         types.StatusAccepted,
			Reason:         ReasonByVote,
			OverrideFormat: t.FormatAgainst >= t.FormatFor,
		}
	}
	if now.After(Deadline(p)) {
		return Outcome{Resolved: true, Status: types.StatusRejected, Reason: ReasonByExpiration}
	}
	return Outcome{}
}

// QuorumPolicy resolves once more than half the community has voted, or the
// deadline has passed. Used for the direct API path.
type QuorumPolicy struct{}

func (QuorumPolicy) Decide(p *types.Proposal, t Tally, members int, now time.Time) Outcome {
	if p.Status != types.StatusInProgress {
		return Outcome{}
	}
	quorumReached := t.Cast > members/2
	timeOver := now.After(Deadline(p))
	if !quorumReached && !timeOver {
		return Outcome{}
	}
	status := types.StatusRejected
	if t.SubjectFor > t.SubjectAgainst {
		status = types.StatusAccepted
	}
	reason := ReasonByVote
	if !quorumReached {
		reason = ReasonByExpiration
	}
	return Outcome{Resolved: true, Status: status, Reason: reason}
}

// Deadline is derived from the creation time; it is never stored.
func Deadline(p *types.Proposal) time.Time {
	return p.CreatedAt.Add(ProposalWindow)
}

// Quorum is the participation requirement relative to community size.
type Quorum struct {
	Current  int `json:"current"`
	Required int `json:"required"`
}

func QuorumFor(cast, members int) Quorum {
	return Quorum{
		Current:  cast,
		Required: int(math.Ceil(float64(members) / 2)),
	}
}

// Progress is the quorum completion percentage, rounded.
func (q Quorum) Progress() int {
	if q.Required == 0 {
		return 0
	}
	return int(math.Round(float64(q.Current) / float64(q.Required) * 100))
}

// Reason reports how a resolved proposal ended.
func Reason(p *types.Proposal) string {
	if p.EndedAt != nil && p.EndedAt.After(Deadline(p)) {
		return ReasonByExpiration
	}
	return ReasonByVote
}
