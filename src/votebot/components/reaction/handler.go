package reaction

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/snowledge-labs/snowvote/src/votebot/components/proposal"
	"github.com/snowledge-labs/snowvote/src/voting"
	"gorm.io/gorm"
)

// ReactorSource enumerates the non-bot users currently holding a reaction
// on a message. Abstracted so the reconciliation step is testable without
// a live gateway session.
type ReactorSource interface {
	Reactors(channelID, messageID, emoji string) ([]string, error)
}

type sessionReactors struct {
	s *discordgo.Session
}

func (r sessionReactors) Reactors(channelID, messageID, emoji string) ([]string, error) {
	users, err := r.s.MessageReactions(channelID, messageID, emoji, 100, "", "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.Bot {
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

type Config struct {
	DB      *gorm.DB
	Service *voting.Service
}

// Handler turns reaction-add events on vote announcements into ledger
// writes and resolution checks.
type Handler struct {
	config   Config
	reactors ReactorSource
}

func NewHandler(config Config) *Handler {
	return &Handler{config: config}
}

// voteEvent is one emoji decoded to its ballot meaning.
type voteEvent struct {
	kind  string
	value string
}

func mapEmoji(name string) (voteEvent, bool) {
	switch name {
	case "✅":
		return voteEvent{kind: voting.KindSubject, value: types.ChoiceFor}, true
	case "❌":
		return voteEvent{kind: voting.KindSubject, value: types.ChoiceAgainst}, true
	case "👍":
		return voteEvent{kind: voting.KindFormat, value: types.ChoiceFor}, true
	case "👎":
		return voteEvent{kind: voting.KindFormat, value: types.ChoiceAgainst}, true
	}
	return voteEvent{}, false
}

func (h *Handler) HandleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.UserID == s.State.User.ID {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}

	var link types.GuildLink
	if err := h.config.DB.First(&link, "guild_id = ?", r.GuildID).Error; err != nil {
		return
	}
	if link.VoteChannelID == "" || r.ChannelID != link.VoteChannelID {
		return
	}

	msg, err := s.ChannelMessage(r.ChannelID, r.MessageID)
	if err != nil {
		if isUnknownMessage(err) {
			log.Printf("reaction: message %s gone before processing, skipping", r.MessageID)
			return
		}
		log.Printf("reaction: fetch message %s: %v", r.MessageID, err)
		return
	}

	src := h.reactors
	if src == nil {
		src = sessionReactors{s: s}
	}

	p, out, err := h.ingest(context.Background(), &link, r.ChannelID, r.MessageID, msg.Content, r.UserID, r.Emoji.Name, src)
	if err != nil {
		log.Printf("reaction: ingest vote on message %s: %v", r.MessageID, err)
		return
	}
	if p == nil || !out.Resolved {
		return
	}

	h.announceResult(s, &link, p, r.ChannelID, r.MessageID)
}

// ingest is the transactional core: map the emoji, resolve voter and
// proposal, reconcile the format choice from the live reaction state, then
// write + tally + decide under the proposal row lock. Reactor enumeration
// happens before the lock is taken.
func (h *Handler) ingest(ctx context.Context, link *types.GuildLink, channelID, messageID, content, reactorID, emoji string, src ReactorSource) (*types.Proposal, voting.Outcome, error) {
	ev, ok := mapEmoji(emoji)
	if !ok {
		return nil, voting.Outcome{}, nil
	}

	ann, ok := proposal.ParseAnnouncement(content)
	if !ok {
		return nil, voting.Outcome{}, nil
	}

	var voter types.User
	if err := h.config.DB.First(&voter, "discord_id = ?", reactorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("reaction: discord user %s not found, vote dropped", reactorID)
			return nil, voting.Outcome{}, nil
		}
		return nil, voting.Outcome{}, err
	}

	p, err := h.config.Service.FindOpenProposal(ctx, link.CommunityID, ann.Subject, ann.Format)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("reaction: no in-progress proposal matches announcement (title: %s, format: %s); announcement and database have diverged", ann.Subject, ann.Format)
			return nil, voting.Outcome{}, nil
		}
		return nil, voting.Outcome{}, err
	}

	ballot := voting.Ballot{
		ProposalID: p.ID,
		UserID:     voter.ID,
		Kind:       ev.kind,
		Value:      ev.value,
	}

	// Reactions can arrive out of order, so on a subject vote the voter's
	// format choice is re-derived from who currently holds 👍/👎 rather
	// than trusted from event order alone.
	if ev.kind == voting.KindSubject {
		hint, err := h.formatHint(channelID, messageID, reactorID, src)
		if err != nil {
			if isUnknownMessage(err) {
				log.Printf("reaction: message %s deleted while reading reactions, skipping", messageID)
				return nil, voting.Outcome{}, nil
			}
			log.Printf("reaction: read format reactions on %s: %v, skipping", messageID, err)
			return nil, voting.Outcome{}, nil
		}
		ballot.FormatHint = hint
	}

	out, err := h.ingestWithRetry(ctx, ballot)
	if err != nil {
		if errors.Is(err, voting.ErrFormatBeforeSubject) {
			log.Printf("reaction: user %s voted on format before subject, vote ignored", reactorID)
			return nil, voting.Outcome{}, nil
		}
		return nil, voting.Outcome{}, err
	}
	if out.Resolved {
		p.Status = out.Status
		if out.OverrideFormat {
			p.Format = types.FormatToBeDefined
		}
	}
	return p, out, nil
}

// ingestWithRetry retries a single time on a lock-wait timeout.
func (h *Handler) ingestWithRetry(ctx context.Context, b voting.Ballot) (voting.Outcome, error) {
	out, err := h.config.Service.IngestBallot(ctx, b)
	if err != nil && isLockWait(err) {
		log.Printf("reaction: lock wait on proposal %d, retrying once", b.ProposalID)
		return h.config.Service.IngestBallot(ctx, b)
	}
	return out, err
}

func (h *Handler) formatHint(channelID, messageID, reactorID string, src ReactorSource) (string, error) {
	up, err := src.Reactors(channelID, messageID, "👍")
	if err != nil {
		return "", err
	}
	down, err := src.Reactors(channelID, messageID, "👎")
	if err != nil {
		return "", err
	}
	// Later reaction wins when the voter somehow holds both.
	if contains(down, reactorID) {
		return types.ChoiceAgainst, nil
	}
	if contains(up, reactorID) {
		return types.ChoiceFor, nil
	}
	return "", nil
}

// announceResult posts the decision in the results channel and retracts the
// announcement. The delete is best-effort.
func (h *Handler) announceResult(s *discordgo.Session, link *types.GuildLink, p *types.Proposal, channelID, messageID string) {
	if link.ResultChannelID == "" {
		log.Printf("reaction: no results channel assigned for guild %s", link.GuildID)
		return
	}
	if _, err := s.ChannelMessageSend(link.ResultChannelID, proposal.ResultMessage(p.Status, p.Title, p.Format)); err != nil {
		log.Printf("reaction: announce result for proposal %d: %v", p.ID, err)
	}
	if err := s.ChannelMessageDelete(channelID, messageID); err != nil {
		log.Printf("reaction: delete announcement %s: %v", messageID, err)
	}
}

func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMessage
	}
	return false
}

func isLockWait(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Lock wait timeout") || strings.Contains(msg, "Error 1205")
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
