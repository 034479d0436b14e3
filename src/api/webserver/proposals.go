package webserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/snowledge-labs/snowvote/src/voting"
	"gorm.io/gorm"
)

type Proposals struct {
	db        *gorm.DB
	svc       *voting.Service
	sanitizer *bluemonday.Policy
}

func NewProposals(db *gorm.DB, svc *voting.Service) Proposals {
	return Proposals{db: db, svc: svc, sanitizer: bluemonday.StrictPolicy()}
}

type proposalView struct {
	ID            uint64        `json:"id"`
	CommunityID   uint64        `json:"communityId"`
	SubmitterID   uint64        `json:"submitterId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Format        string        `json:"format"`
	Comments      string        `json:"comments,omitempty"`
	IsContributor bool          `json:"isContributor"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	Deadline      time.Time     `json:"deadline"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Quorum        voting.Quorum `json:"quorum"`
	Progress      int           `json:"progress"`
}

func (h Proposals) view(c *gin.Context, p *types.Proposal) proposalView {
	v := proposalView{
		ID:            p.ID,
		CommunityID:   p.CommunityID,
		SubmitterID:   p.SubmitterID,
		Title:         p.Title,
		Description:   p.Description,
		Format:        p.Format,
		Comments:      p.Comments,
		IsContributor: p.IsContributor,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		Deadline:      voting.Deadline(p),
		EndedAt:       p.EndedAt,
	}
	if p.Status != types.StatusInProgress {
		v.Reason = voting.Reason(p)
	}

	tally, err := h.svc.TallyFor(c, p.ID)
	if err != nil {
		log.Printf("Failed to tally proposal %d: %v", p.ID, err)
		return v
	}
	members, err := h.svc.MemberCount(c, p.CommunityID)
	if err != nil {
		log.Printf("Failed to count members of community %d: %v", p.CommunityID, err)
		return v
	}
	v.Quorum = voting.QuorumFor(tally.Cast, members)
	v.Progress = v.Quorum.Progress()
	return v
}

func (h Proposals) Submit(c *gin.Context) {
	communityID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid community id"})
		return
	}
	uid, ok := userID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req struct {
		Title         string `json:"title" binding:"required,max=80"`
		Description   string `json:"description" binding:"required,max=200"`
		Format        string `json:"format" binding:"max=40"`
		Comments      string `json:"comments" binding:"max=400"`
		IsContributor bool   `json:"isContributor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	proposal, err := h.svc.SubmitProposal(c, communityID, uid, voting.Submission{
		Title:         h.sanitizer.Sanitize(req.Title),
		Description:   h.sanitizer.Sanitize(req.Description),
		Format:        h.sanitizer.Sanitize(req.Format),
		Comments:      h.sanitizer.Sanitize(req.Comments),
		IsContributor: req.IsContributor,
	})
	if err != nil {
		switch {
		case errors.Is(err, voting.ErrNotMember):
			c.JSON(http.StatusForbidden, gin.H{"err": "not a member of this community"})
		case errors.Is(err, voting.ErrInvalidSubmission):
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"err": "community not found"})
		default:
			log.Printf("Failed to submit proposal to community %d: %v", communityID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to submit proposal"})
		}
		return
	}

	c.JSON(http.StatusCreated, h.view(c, proposal))
}

func (h Proposals) List(c *gin.Context) {
	communityID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid community id"})
		return
	}

	proposals, err := h.svc.ListProposals(c, communityID)
	if err != nil {
		log.Printf("Failed to list proposals for community %d: %v", communityID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to list proposals"})
		return
	}

	views := make([]proposalView, 0, len(proposals))
	for i := range proposals {
		views = append(views, h.view(c, &proposals[i]))
	}
	c.JSON(http.StatusOK, gin.H{"proposals": views})
}

func (h Proposals) Get(c *gin.Context) {
	proposalID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid proposal id"})
		return
	}

	proposal, err := h.svc.GetProposal(c, proposalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"err": "proposal not found"})
			return
		}
		log.Printf("Failed to get proposal %d: %v", proposalID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to get proposal"})
		return
	}

	c.JSON(http.StatusOK, h.view(c, proposal))
}
