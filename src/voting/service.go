package voting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/snowledge-labs/snowvote/src/shared/data"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotMember         = errors.New("user is not a member of this community")
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Publisher receives resolution events after their transaction commits.
type Publisher interface {
	PublishResolution(ctx context.Context, ev data.ResolutionEvent) error
}

// RedisPublisher publishes resolution events to the redis stream consumed
// by the bot's results monitor.
type RedisPublisher struct {
	Rdb *redis.Client
}

func (p RedisPublisher) PublishResolution(ctx context.Context, ev data.ResolutionEvent) error {
	return data.PublishResolution(ctx, p.Rdb, ev)
}

// Service owns proposal and vote state. All status transitions go through
// it, inside a transaction that locks the proposal row.
type Service struct {
	db        *gorm.DB
	threshold ThresholdPolicy
	quorum    QuorumPolicy
	publisher Publisher
}

func NewService(db *gorm.DB, publisher Publisher) *Service {
	return &Service{
		db: db,
		threshold: ThresholdPolicy{
			AcceptVotes: data.GetSettingInt("accept_threshold", 1),
			RejectVotes: data.GetSettingInt("reject_threshold", 1),
		},
		publisher: publisher,
	}
}

// Threshold returns the reaction-path policy in effect.
func (s *Service) Threshold() ThresholdPolicy { return s.threshold }

// Submission is a validated proposal submission.
type Submission struct {
	Title         string
	Description   string
	Format        string
	Comments      string
	IsContributor bool
}

func (s *Service) SubmitProposal(ctx context.Context, communityID, submitterID uint64, in Submission) (*types.Proposal, error) {
	if len(in.Title) == 0 || len(in.Title) > 80 {
		return nil, fmt.Errorf("%w: title must be between 1 and 80 characters", ErrInvalidSubmission)
	}
	if len(in.Description) == 0 || len(in.Description) > 200 {
		return nil, fmt.Errorf("%w: description must be between 1 and 200 characters", ErrInvalidSubmission)
	}
	if len(in.Format) > 40 || len(in.Comments) > 400 {
		return nil, fmt.Errorf("%w: format or comments too long", ErrInvalidSubmission)
	}

	db := s.db.WithContext(ctx)
	var community types.Community
	if err := db.First(&community, communityID).Error; err != nil {
		return nil, fmt.Errorf("community %d: %w", communityID, err)
	}
	var member types.Member
	if err := db.First(&member, "community_id = ? AND user_id = ?", communityID, submitterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}

	proposal := types.Proposal{
		CommunityID:   communityID,
		SubmitterID:   submitterID,
		Title:         in.Title,
		Description:   in.Description,
		Format:        in.Format,
		Comments:      in.Comments,
		IsContributor: in.IsContributor,
		Status:        types.StatusInProgress,
	}
	if err := db.Create(&proposal).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ListProposals returns a community's proposals, newest first. Overdue
// in-progress proposals are finalized before the list is read.
func (s *Service) ListProposals(ctx context.Context, communityID uint64) ([]types.Proposal, error) {
	if err := s.SweepExpired(ctx, communityID, time.Now()); err != nil {
		log.Printf("voting: sweep community %d: %v", communityID, err)
	}

	var proposals []types.Proposal
	err := s.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("created_at DESC").
		Find(&proposals).Error
	return proposals, err
}

// GetProposal returns one proposal, finalizing it first if overdue.
func (s *Service) GetProposal(ctx context.Context, proposalID uint64) (*types.Proposal, error) {
	var p types.Proposal
	if err := s.db.WithContext(ctx).First(&p, proposalID).Error; err != nil {
		return nil, err
	}
	if p.Status == types.StatusInProgress && time.Now().After(Deadline(&p)) {
		if err := s.SweepExpired(ctx, p.CommunityID, time.Now()); err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).First(&p, proposalID).Error; err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// FindOpenProposal resolves an announcement back to its in-progress proposal.
func (s *Service) FindOpenProposal(ctx context.Context, communityID uint64, title, format string) (*types.Proposal, error) {
	var p types.Proposal
	err := s.db.WithContext(ctx).
		Where("community_id = ? AND title = ? AND format = ? AND status = ?",
			communityID, title, format, types.StatusInProgress).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MemberCount is the quorum denominator for a community.
func (s *Service) MemberCount(ctx context.Context, communityID uint64) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&types.Member{}).
		Where("community_id = ?", communityID).Count(&n).Error
	return int(n), err
}

// TallyFor reads the current counts for a proposal outside any transaction.
func (s *Service) TallyFor(ctx context.Context, proposalID uint64) (Tally, error) {
	return TallyVotes(s.db.WithContext(ctx), proposalID)
}

// CastVote records a direct API vote and runs the quorum policy. The vote
// write, tally and decision share one transaction holding a write lock on
// the proposal row, so concurrent votes on the same proposal serialize.
func (s *Service) CastVote(ctx context.Context, proposalID, userID uint64, kind, value, comment string) (*types.Vote, Outcome, error) {
	var (
		vote *types.Vote
		out  Outcome
		p    types.Proposal
	)
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&p, proposalID).Error; err != nil {
			return err
		}
		if p.Status != types.StatusInProgress {
			return ErrProposalClosed
		}
		var member types.Member
		if err := tx.First(&member, "community_id = ? AND user_id = ?", p.CommunityID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotMember
			}
			return err
		}

		v, err := RecordVote(tx, proposalID, userID, kind, value)
		if err != nil {
			return err
		}
		if comment != "" {
			if kind == KindFormat {
				v.FormatComment = comment
			} else {
				v.Comment = comment
			}
			if err := tx.Save(v).Error; err != nil {
				return err
			}
		}
		vote = v

		tally, err := TallyVotes(tx, proposalID)
		if err != nil {
			return err
		}
		members, err := memberCount(tx, p.CommunityID)
		if err != nil {
			return err
		}
		out = s.quorum.Decide(&p, tally, members, now)
		if out.Resolved {
			return applyResolution(tx, &p, out, now)
		}
		return nil
	})
	if err != nil {
		return nil, Outcome{}, err
	}
	if out.Resolved {
		s.publish(ctx, &p, out)
	}
	return vote, out, nil
}

// Ballot is one reaction-path vote event, already mapped and resolved to
// internal identities by the ingestion adapter.
type Ballot struct {
	ProposalID uint64
	UserID     uint64
	Kind       string
	Value      string
	// FormatHint carries the voter's format choice reconciled from the live
	// reaction state, persisted alongside a subject vote.
	FormatHint string
}

// IngestBallot records a reaction vote and runs the threshold policy, all
// under the proposal row lock. Votes on already-resolved proposals are a
// no-op: terminal states are frozen.
func (s *Service) IngestBallot(ctx context.Context, b Ballot) (Outcome, error) {
	var out Outcome
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p types.Proposal
		if err := lockForUpdate(tx).First(&p, b.ProposalID).Error; err != nil {
			return err
		}
		if p.Status != types.StatusInProgress {
			return nil
		}

		if _, err := RecordVote(tx, b.ProposalID, b.UserID, b.Kind, b.Value); err != nil {
			return err
		}
		if b.Kind == KindSubject && b.FormatHint != "" {
			if _, err := RecordVote(tx, b.ProposalID, b.UserID, KindFormat, b.FormatHint); err != nil {
				return err
			}
		}

		tally, err := TallyVotes(tx, b.ProposalID)
		if err != nil {
			return err
		}
		members, err := memberCount(tx, p.CommunityID)
		if err != nil {
			return err
		}
		out = s.threshold.Decide(&p, tally, members, now)
		if out.Resolved {
			return applyResolution(tx, &p, out, now)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// lockForUpdate takes a pessimistic write lock on the selected rows. The
// sqlite dialect has no FOR UPDATE; its single-writer model serializes the
// transaction anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func memberCount(tx *gorm.DB, communityID uint64) (int, error) {
	var n int64
	err := tx.Model(&types.Member{}).Where("community_id = ?", communityID).Count(&n).Error
	return int(n), err
}

func applyResolution(tx *gorm.DB, p *types.Proposal, out Outcome, now time.Time) error {
	p.Status = out.Status
	p.EndedAt = &now
	if out.OverrideFormat {
		p.Format = types.FormatToBeDefined
	}
	return tx.Save(p).Error
}

func (s *Service) publish(ctx context.Context, p *types.Proposal, out Outcome) {
	if s.publisher == nil {
		return
	}
	ev := data.ResolutionEvent{
		ProposalID:  p.ID,
		CommunityID: p.CommunityID,
		Status:      p.Status,
		Title:       p.Title,
		Format:      p.Format,
		Reason:      out.Reason,
	}
	if err := s.publisher.PublishResolution(ctx, ev); err != nil {
		log.Printf("voting: publish resolution for proposal %d: %v", p.ID, err)
	}
}
