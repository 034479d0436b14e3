package voting

import (
	"testing"
	"time"

	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/stretchr/testify/assert"
)

func openProposal(createdAt time.Time) *types.Proposal {
	return &types.Proposal{
		ID:          1,
		CommunityID: 1,
		Title:       "Weekly study group",
		Format:      "workshop",
		Status:      types.StatusInProgress,
		CreatedAt:   createdAt,
	}
}

func TestThresholdPolicyAccept(t *testing.T) {
	pol := ThresholdPolicy{AcceptVotes: 1, RejectVotes: 1}
	p := openProposal(time.Now())

	out := pol.Decide(p, Tally{SubjectFor: 1, FormatFor: 1, Cast: 1}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
	assert.Equal(t, ReasonByVote, out.Reason)
	assert.False(t, out.OverrideFormat)
}

func TestThresholdPolicyRejectWinsOverAccept(t *testing.T) {
	// With both thresholds met in the same tally, rejection is checked first.
	pol := ThresholdPolicy{AcceptVotes: 1, RejectVotes: 1}
	p := openProposal(time.Now())

	out := pol.Decide(p, Tally{SubjectFor: 1, SubjectAgainst: 1, Cast: 2}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusRejected, out.Status)
	assert.Equal(t, ReasonByVote, out.Reason)
}

func TestThresholdPolicyFormatOverride(t *testing.T) {
	pol := ThresholdPolicy{AcceptVotes: 1, RejectVotes: 1}
	p := openProposal(time.Now())

	// Format vote tied: accepted, but the proposed format does not stand.
	out := pol.Decide(p, Tally{SubjectFor: 1, FormatFor: 1, FormatAgainst: 1, Cast: 2}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
	assert.True(t, out.OverrideFormat)

	// Format vote lost outright.
	out = pol.Decide(p, Tally{SubjectFor: 1, FormatAgainst: 1, Cast: 1}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.True(t, out.OverrideFormat)

	// Format vote won.
	out = pol.Decide(p, Tally{SubjectFor: 1, FormatFor: 2, FormatAgainst: 1, Cast: 2}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.False(t, out.OverrideFormat)
}

func TestThresholdPolicyHigherThresholds(t *testing.T) {
	pol := ThresholdPolicy{AcceptVotes: 3, RejectVotes: 2}
	p := openProposal(time.Now())

	out := pol.Decide(p, Tally{SubjectFor: 2, Cast: 2}, 10, time.Now())
	assert.False(t, out.Resolved)

	out = pol.Decide(p, Tally{SubjectFor: 3, FormatFor: 3, Cast: 3}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)

	out = pol.Decide(p, Tally{SubjectAgainst: 2, Cast: 2}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusRejected, out.Status)
}

func TestThresholdPolicyExpiry(t *testing.T) {
	pol := ThresholdPolicy{AcceptVotes: 1, RejectVotes: 1}
	p := openProposal(time.Now().Add(-ProposalWindow - time.Hour))

	out := pol.Decide(p, Tally{}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusRejected, out.Status)
	assert.Equal(t, ReasonByExpiration, out.Reason)
}

func TestThresholdPolicyTerminalFrozen(t *testing.T) {
	pol := ThresholdPolicy{AcceptVotes: 1, RejectVotes: 1}
	p := openProposal(time.Now())
	p.Status = types.StatusAccepted

	out := pol.Decide(p, Tally{SubjectAgainst: 5, Cast: 5}, 10, time.Now())
	assert.False(t, out.Resolved)
}

func TestQuorumPolicyResolvesOnMajorityParticipation(t *testing.T) {
	pol := QuorumPolicy{}
	p := openProposal(time.Now())

	// 10 members: 5 votes is not quorum, 6 is.
	out := pol.Decide(p, Tally{SubjectFor: 5, Cast: 5}, 10, time.Now())
	assert.False(t, out.Resolved)

	out = pol.Decide(p, Tally{SubjectFor: 4, SubjectAgainst: 2, Cast: 6}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
	assert.Equal(t, ReasonByVote, out.Reason)
}

func TestQuorumPolicyOddMembership(t *testing.T) {
	pol := QuorumPolicy{}
	p := openProposal(time.Now())

	// 5 members: quorum needs strictly more than 2.5 votes, so 3.
	out := pol.Decide(p, Tally{SubjectFor: 2, Cast: 2}, 5, time.Now())
	assert.False(t, out.Resolved)

	out = pol.Decide(p, Tally{SubjectFor: 2, SubjectAgainst: 1, Cast: 3}, 5, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
}

func TestQuorumPolicyTieRejects(t *testing.T) {
	pol := QuorumPolicy{}
	p := openProposal(time.Now())

	out := pol.Decide(p, Tally{SubjectFor: 2, SubjectAgainst: 2, Cast: 4}, 6, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusRejected, out.Status)
}

func TestQuorumPolicyExpiryWithoutQuorum(t *testing.T) {
	pol := QuorumPolicy{}
	p := openProposal(time.Now().Add(-ProposalWindow - time.Hour))

	out := pol.Decide(p, Tally{SubjectFor: 2, Cast: 2}, 10, time.Now())
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
	assert.Equal(t, ReasonByExpiration, out.Reason)
}

func TestQuorumPolicyTerminalFrozen(t *testing.T) {
	pol := QuorumPolicy{}
	p := openProposal(time.Now())
	p.Status = types.StatusRejected

	out := pol.Decide(p, Tally{SubjectFor: 9, Cast: 9}, 10, time.Now())
	assert.False(t, out.Resolved)
}

func TestDeadline(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := openProposal(created)
	assert.Equal(t, created.Add(5*24*time.Hour), Deadline(p))
}

func TestQuorumFor(t *testing.T) {
	q := QuorumFor(2, 5)
	assert.Equal(t, 2, q.Current)
	assert.Equal(t, 3, q.Required)
	assert.Equal(t, 67, q.Progress())

	q = QuorumFor(6, 10)
	assert.Equal(t, 5, q.Required)
	assert.Equal(t, 120, q.Progress())

	assert.Equal(t, 0, QuorumFor(0, 0).Progress())
}

func TestReason(t *testing.T) {
	p := openProposal(time.Now().Add(-time.Hour))
	early := time.Now()
	p.EndedAt = &early
	assert.Equal(t, ReasonByVote, Reason(p))

	p = openProposal(time.Now().Add(-ProposalWindow - 2*time.Hour))
	late := time.Now()
	p.EndedAt = &late
	assert.Equal(t, ReasonByExpiration, Reason(p))
}
