package voting

import (
	"context"
	"time"

	"github.com/snowledge-labs/snowvote/src/shared/types"
	"gorm.io/gorm"
)

// SweepExpired finalizes every in-progress proposal of a community whose
// deadline has passed, in one batch. It is read-triggered: callers invoke it
// before returning proposal lists, there is no background scheduler.
func (s *Service) SweepExpired(ctx context.Context, communityID uint64, now time.Time) error {
	cutoff := now.Add(-ProposalWindow)

	var expired []types.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("community_id = ? AND status = ? AND created_at < ?",
				communityID, types.StatusInProgress, cutoff).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]uint64, len(expired))
		for i := range expired {
			ids[i] = expired[i].ID
		}
		return tx.Model(&types.Proposal{}).
			Where("id IN ? AND status = ?", ids, types.StatusInProgress).
			Updates(map[string]interface{}{
				"status":   types.StatusRejected,
				"ended_at": now,
			}).Error
	})
	if err != nil {
		return err
	}

	for i := range expired {
		p := expired[i]
		p.Status = types.StatusRejected
		p.EndedAt = &now
		s.publish(ctx, &p, Outcome{
			Resolved: true,
			Status:   types.StatusRejected,
			Reason:   ReasonByExpiration,
		})
	}
	return nil
}
