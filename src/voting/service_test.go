package voting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/snowledge-labs/snowvote/src/shared/data"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePublisher struct {
	events []data.ResolutionEvent
}

func (p *fakePublisher) PublishResolution(_ context.Context, ev data.ResolutionEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func seedCommunity(t *testing.T, db *gorm.DB, memberIDs ...uint64) uint64 {
	t.Helper()
	community := types.Community{Slug: "go-learners", Name: "Go Learners"}
	require.NoError(t, db.Create(&community).Error)
	for _, id := range memberIDs {
		user := types.User{ID: id, Username: fmt.Sprintf("user%d", id), DiscordID: fmt.Sprintf("10%d", id)}
		require.NoError(t, db.Create(&user).Error)
		require.NoError(t, db.Create(&types.Member{CommunityID: community.ID, UserID: id}).Error)
	}
	return community.ID
}

func seedProposal(t *testing.T, db *gorm.DB, communityID uint64, createdAt time.Time) *types.Proposal {
	t.Helper()
	p := types.Proposal{
		CommunityID: communityID,
		SubmitterID: 1,
		Title:       "Weekly study group",
		Description: "A recurring session to review each other's code",
		Format:      "workshop",
		Status:      types.StatusInProgress,
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func TestSubmitProposal(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2)
	svc := NewService(db, nil)

	p, err := svc.SubmitProposal(context.Background(), communityID, 1, Submission{
		Title:       "Weekly study group",
		Description: "A recurring session to review each other's code",
		Format:      "workshop",
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, p.Status)
	assert.NotZero(t, p.ID)
}

func TestSubmitProposalRejectsNonMember(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1)
	svc := NewService(db, nil)

	_, err := svc.SubmitProposal(context.Background(), communityID, 99, Submission{
		Title:       "Outsider idea",
		Description: "Should not be allowed",
	})
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestSubmitProposalValidatesLengths(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1)
	svc := NewService(db, nil)

	long := make([]byte, 81)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.SubmitProposal(context.Background(), communityID, 1, Submission{
		Title:       string(long),
		Description: "ok",
	})
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	_, err = svc.SubmitProposal(context.Background(), communityID, 1, Submission{
		Title:       "ok",
		Description: "",
	})
	assert.ErrorIs(t, err, ErrInvalidSubmission)
}

func TestCastVoteResolvesOnQuorum(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2, 3, 4, 5)
	p := seedProposal(t, db, communityID, time.Now())
	pub := &fakePublisher{}
	svc := NewService(db, pub)
	ctx := context.Background()

	// 5 members: quorum needs more than 2 votes.
	_, out, err := svc.CastVote(ctx, p.ID, 1, KindSubject, types.ChoiceFor, "")
	require.NoError(t, err)
	assert.False(t, out.Resolved)

	_, out, err = svc.CastVote(ctx, p.ID, 2, KindSubject, types.ChoiceFor, "sounds great")
	require.NoError(t, err)
	assert.False(t, out.Resolved)

	_, out, err = svc.CastVote(ctx, p.ID, 3, KindSubject, types.ChoiceAgainst, "")
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
	assert.Equal(t, ReasonByVote, out.Reason)

	var got types.Proposal
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, types.StatusAccepted, got.Status)
	require.NotNil(t, got.EndedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, p.ID, pub.events[0].ProposalID)
	assert.Equal(t, types.StatusAccepted, pub.events[0].Status)
}

func TestCastVoteTerminalProposalIsClosed(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2)
	p := seedProposal(t, db, communityID, time.Now())
	ended := time.Now()
	require.NoError(t, db.Model(p).Updates(map[string]interface{}{
		"status":   types.StatusAccepted,
		"ended_at": ended,
	}).Error)
	svc := NewService(db, nil)

	_, _, err := svc.CastVote(context.Background(), p.ID, 1, KindSubject, types.ChoiceAgainst, "")
	assert.ErrorIs(t, err, ErrProposalClosed)

	var got types.Proposal
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, types.StatusAccepted, got.Status)
}

func TestCastVoteRejectsNonMember(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1)
	p := seedProposal(t, db, communityID, time.Now())
	svc := NewService(db, nil)

	_, _, err := svc.CastVote(context.Background(), p.ID, 42, KindSubject, types.ChoiceFor, "")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestCastVoteFormatBeforeSubject(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2, 3)
	p := seedProposal(t, db, communityID, time.Now())
	svc := NewService(db, nil)

	_, _, err := svc.CastVote(context.Background(), p.ID, 1, KindFormat, types.ChoiceFor, "")
	assert.ErrorIs(t, err, ErrFormatBeforeSubject)
}

func TestCastVoteStoresComments(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2, 3)
	p := seedProposal(t, db, communityID, time.Now())
	svc := NewService(db, nil)
	ctx := context.Background()

	v, _, err := svc.CastVote(ctx, p.ID, 1, KindSubject, types.ChoiceFor, "great idea")
	require.NoError(t, err)
	assert.Equal(t, "great idea", v.Comment)

	v, _, err = svc.CastVote(ctx, p.ID, 1, KindFormat, types.ChoiceAgainst, "prefer a talk")
	require.NoError(t, err)
	assert.Equal(t, "great idea", v.Comment)
	assert.Equal(t, "prefer a talk", v.FormatComment)
}

func TestIngestBallotResolvesAtThreshold(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2, 3, 4, 5)
	p := seedProposal(t, db, communityID, time.Now())
	svc := NewService(db, nil)

	out, err := svc.IngestBallot(context.Background(), Ballot{
		ProposalID: p.ID,
		UserID:     2,
		Kind:       KindSubject,
		Value:      types.ChoiceFor,
		FormatHint: types.ChoiceFor,
	})
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
	assert.False(t, out.OverrideFormat)

	var got types.Proposal
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, types.StatusAccepted, got.Status)
	assert.Equal(t, "workshop", got.Format)
}

func TestIngestBallotFormatOverrideOnAcceptance(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2, 3, 4, 5)
	p := seedProposal(t, db, communityID, time.Now())
	svc := NewService(db, nil)

	out, err := svc.IngestBallot(context.Background(), Ballot{
		ProposalID: p.ID,
		UserID:     2,
		Kind:       KindSubject,
		Value:      types.ChoiceFor,
		FormatHint: types.ChoiceAgainst,
	})
	require.NoError(t, err)
	assert.True(t, out.Resolved)
	assert.Equal(t, types.StatusAccepted, out.Status)
	assert.True(t, out.OverrideFormat)

	var got types.Proposal
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, types.FormatToBeDefined, got.Format)
}

func TestIngestBallotTerminalIsNoOp(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2)
	p := seedProposal(t, db, communityID, time.Now())
	require.NoError(t, db.Model(p).Update("status", types.StatusRejected).Error)
	svc := NewService(db, nil)

	out, err := svc.IngestBallot(context.Background(), Ballot{
		ProposalID: p.ID,
		UserID:     1,
		Kind:       KindSubject,
		Value:      types.ChoiceFor,
	})
	require.NoError(t, err)
	assert.False(t, out.Resolved)

	var count int64
	db.Model(&types.Vote{}).Count(&count)
	assert.EqualValues(t, 0, count, "votes on resolved proposals are dropped")
}

func TestSweepExpired(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1, 2)
	stale := seedProposal(t, db, communityID, time.Now().Add(-ProposalWindow-time.Hour))
	fresh := seedProposal(t, db, communityID, time.Now())
	pub := &fakePublisher{}
	svc := NewService(db, pub)

	require.NoError(t, svc.SweepExpired(context.Background(), communityID, time.Now()))

	var got types.Proposal
	require.NoError(t, db.First(&got, stale.ID).Error)
	assert.Equal(t, types.StatusRejected, got.Status)
	require.NotNil(t, got.EndedAt)

	got = types.Proposal{}
	require.NoError(t, db.First(&got, fresh.ID).Error)
	assert.Equal(t, types.StatusInProgress, got.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, stale.ID, pub.events[0].ProposalID)
	assert.Equal(t, ReasonByExpiration, pub.events[0].Reason)
}

func TestSweepExpiredIdempotent(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1)
	seedProposal(t, db, communityID, time.Now().Add(-ProposalWindow-time.Hour))
	pub := &fakePublisher{}
	svc := NewService(db, pub)
	ctx := context.Background()

	require.NoError(t, svc.SweepExpired(ctx, communityID, time.Now()))
	require.NoError(t, svc.SweepExpired(ctx, communityID, time.Now()))
	assert.Len(t, pub.events, 1, "a proposal resolves exactly once")
}

func TestListProposalsSweepsFirst(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1)
	stale := seedProposal(t, db, communityID, time.Now().Add(-ProposalWindow-time.Hour))
	svc := NewService(db, nil)

	proposals, err := svc.ListProposals(context.Background(), communityID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, stale.ID, proposals[0].ID)
	assert.Equal(t, types.StatusRejected, proposals[0].Status)
}

func TestGetProposalFinalizesOverdue(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1)
	stale := seedProposal(t, db, communityID, time.Now().Add(-ProposalWindow-time.Hour))
	svc := NewService(db, nil)

	got, err := svc.GetProposal(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, got.Status)
	require.NotNil(t, got.EndedAt)
}

func TestFindOpenProposal(t *testing.T) {
	db := testDB(t)
	communityID := seedCommunity(t, db, 1)
	p := seedProposal(t, db, communityID, time.Now())
	svc := NewService(db, nil)
	ctx := context.Background()

	got, err := svc.FindOpenProposal(ctx, communityID, p.Title, p.Format)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	require.NoError(t, db.Model(p).Update("status", types.StatusAccepted).Error)
	_, err = svc.FindOpenProposal(ctx, communityID, p.Title, p.Format)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
