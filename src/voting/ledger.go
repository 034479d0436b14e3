package voting

import (
	"errors"

	"github.com/snowledge-labs/snowvote/src/shared/types"
	"gorm.io/gorm"
)

// Vote kinds
const (
	KindSubject = "subject"
	KindFormat  = "format"
)

var (
	// ErrFormatBeforeSubject is returned when a voter tries to vote on the
	// format before voting on the subject.
	ErrFormatBeforeSubject = errors.New("format vote requires a prior subject vote")

	// ErrProposalClosed is returned for votes against a proposal that has
	// already reached a terminal status.
	ErrProposalClosed = errors.New("proposal is no longer open for voting")
)

// RecordVote upserts the ballot row keyed by (proposal, user). A repeat vote
// from the same user updates the existing row instead of creating a second
// one. Must run inside the caller's transaction.
func RecordVote(tx *gorm.DB, proposalID, userID uint64, kind, value string) (*types.Vote, error) {
	var vote types.Vote
	err := tx.Where("proposal_id = ? AND user_id = ?", proposalID, userID).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if kind == KindFormat {
			return nil, ErrFormatBeforeSubject
		}
		vote = types.Vote{ProposalID: proposalID, UserID: userID, Choice: value}
		if err := tx.Create(&vote).Error; err != nil {
			return nil, err
		}
		return &vote, nil
	}
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindFormat:
		if vote.Choice == "" {
			return nil, ErrFormatBeforeSubject
		}
		vote.FormatChoice = value
	default:
		vote.Choice = value
	}
	if err := tx.Save(&vote).Error; err != nil {
		return nil, err
	}
	return &vote, nil
}

// TallyVotes counts the current ballot rows for a proposal.
func TallyVotes(tx *gorm.DB, proposalID uint64) (Tally, error) {
	var votes []types.Vote
	if err := tx.Where("proposal_id = ?", proposalID).Find(&votes).Error; err != nil {
		return Tally{}, err
	}

	var t Tally
	t.Cast = len(votes)
	for _, v := range votes {
		switch v.Choice {
		case types.ChoiceFor:
			t.SubjectFor++
		case types.ChoiceAgainst:
			t.SubjectAgainst++
		}
		switch v.FormatChoice {
		case types.ChoiceFor:
			t.FormatFor++
		case types.ChoiceAgainst:
			t.FormatAgainst++
		}
	}
	return t, nil
}
