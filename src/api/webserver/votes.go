package webserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/snowledge-labs/snowvote/src/voting"
	"gorm.io/gorm"
)

type Votes struct {
	db        *gorm.DB
	svc       *voting.Service
	sanitizer *bluemonday.Policy
}

func NewVotes(db *gorm.DB, svc *voting.Service) Votes {
	return Votes{db: db, svc: svc, sanitizer: bluemonday.StrictPolicy()}
}

func (h Votes) Cast(c *gin.Context) {
	proposalID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid proposal id"})
		return
	}
	uid, ok := userID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req struct {
		Kind    string `json:"kind" binding:"required,oneof=subject format"`
		Value   string `json:"value" binding:"required,oneof=for against"`
		Comment string `json:"comment" binding:"max=400"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	vote, outcome, err := h.svc.CastVote(c, proposalID, uid, req.Kind, req.Value, h.sanitizer.Sanitize(req.Comment))
	if err != nil {
		switch {
		case errors.Is(err, voting.ErrFormatBeforeSubject):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"err": "vote on the subject before voting on the format"})
		case errors.Is(err, voting.ErrProposalClosed):
			c.JSON(http.StatusConflict, gin.H{"err": "proposal is no longer in progress"})
		case errors.Is(err, voting.ErrNotMember):
			c.JSON(http.StatusForbidden, gin.H{"err": "not a member of this community"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"err": "proposal not found"})
		default:
			log.Printf("Failed to cast vote on proposal %d: %v", proposalID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to cast vote"})
		}
		return
	}

	resp := gin.H{
		"vote": gin.H{
			"proposalId":   vote.ProposalID,
			"kind":         req.Kind,
			"choice":       vote.Choice,
			"formatChoice": vote.FormatChoice,
		},
		"resolved": outcome.Resolved,
	}
	if outcome.Resolved {
		resp["status"] = outcome.Status
		resp["reason"] = outcome.Reason
	}
	c.JSON(http.StatusOK, resp)
}

func (h Votes) Summary(c *gin.Context) {
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

	tally, err := h.svc.TallyFor(c, proposalID)
	if err != nil {
		log.Printf("Failed to tally proposal %d: %v", proposalID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to tally votes"})
		return
	}
	members, err := h.svc.MemberCount(c, proposal.CommunityID)
	if err != nil {
		log.Printf("Failed to count members of community %d: %v", proposal.CommunityID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to count members"})
		return
	}

	quorum := voting.QuorumFor(tally.Cast, members)
	c.JSON(http.StatusOK, gin.H{
		"status": proposal.Status,
		"tally": gin.H{
			"subjectFor":     tally.SubjectFor,
			"subjectAgainst": tally.SubjectAgainst,
			"formatFor":      tally.FormatFor,
			"formatAgainst":  tally.FormatAgainst,
			"cast":           tally.Cast,
		},
		"quorum":   quorum,
		"progress": quorum.Progress(),
	})
}
