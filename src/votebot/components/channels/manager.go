package channels

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/snowledge-labs/snowvote/src/votebot/components/proposal"
	"gorm.io/gorm"
)

// Names are the text channel names used for the proposal workflow.
type Names struct {
	Propose string
	Vote    string
	Result  string
}

// Manager owns the guild-side channel lifecycle: creating the workflow
// channels, pinning their explainer messages and keeping the channel ids
// recorded on the guild link.
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Ensure creates any missing workflow channel for a linked guild, posts and
// pins the explainer messages in newly created ones, and persists the
// channel ids. Guilds without a community link are skipped.
func (m *Manager) Ensure(s *discordgo.Session, guildID string, names Names) (*types.GuildLink, error) {
	var link types.GuildLink
	if err := m.db.First(&link, "guild_id = ?", guildID).Error; err != nil {
		return nil, fmt.Errorf("guild %s is not linked to a community: %w", guildID, err)
	}

	existing, err := s.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	byName := make(map[string]*discordgo.Channel)
	for _, ch := range existing {
		if ch.Type == discordgo.ChannelTypeGuildText {
			byName[ch.Name] = ch
		}
	}

	voteCh, createdVote, err := m.ensureOne(s, guildID, names.Vote, byName)
	if err != nil {
		return nil, err
	}
	proposeCh, createdPropose, err := m.ensureOne(s, guildID, names.Propose, byName)
	if err != nil {
		return nil, err
	}
	resultCh, createdResult, err := m.ensureOne(s, guildID, names.Result, byName)
	if err != nil {
		return nil, err
	}

	link.ProposeChannelID = proposeCh.ID
	link.VoteChannelID = voteCh.ID
	link.ResultChannelID = resultCh.ID
	if err := m.db.Save(&link).Error; err != nil {
		return nil, err
	}

	if createdPropose {
		m.postPinned(s, proposeCh.ID, &discordgo.MessageSend{
			Content:    proposal.SubmissionExplanation(voteCh.ID),
			Components: []discordgo.MessageComponent{proposal.IdeaButton()},
		})
	}
	if createdVote {
		m.postPinned(s, voteCh.ID, &discordgo.MessageSend{Content: proposal.VoteExplanation()})
	}
	if createdResult {
		m.postPinned(s, resultCh.ID, &discordgo.MessageSend{Content: proposal.ResultExplanation()})
	}

	return &link, nil
}

func (m *Manager) ensureOne(s *discordgo.Session, guildID, name string, byName map[string]*discordgo.Channel) (*discordgo.Channel, bool, error) {
	if ch, ok := byName[name]; ok {
		return ch, false, nil
	}
	ch, err := s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildText,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create channel %s: %w", name, err)
	}
	log.Printf("channels: created #%s in guild %s", name, guildID)
	return ch, true, nil
}

func (m *Manager) postPinned(s *discordgo.Session, channelID string, msg *discordgo.MessageSend) {
	sent, err := s.ChannelMessageSendComplex(channelID, msg)
	if err != nil {
		log.Printf("channels: post explainer in %s: %v", channelID, err)
		return
	}
	if err := s.ChannelMessagePin(channelID, sent.ID); err != nil {
		log.Printf("channels: pin explainer in %s: %v", channelID, err)
	}
}

// Rename renames the workflow channels recorded on the guild link.
func (m *Manager) Rename(s *discordgo.Session, guildID string, names Names) error {
	var link types.GuildLink
	if err := m.db.First(&link, "guild_id = ?", guildID).Error; err != nil {
		return err
	}
	pairs := []struct {
		id   string
		name string
	}{
		{link.ProposeChannelID, names.Propose},
		{link.VoteChannelID, names.Vote},
		{link.ResultChannelID, names.Result},
	}
	for _, p := range pairs {
		if p.id == "" || p.name == "" {
			continue
		}
		if _, err := s.ChannelEdit(p.id, &discordgo.ChannelEdit{Name: p.name}); err != nil {
			log.Printf("channels: rename %s to %s: %v", p.id, p.name, err)
		}
	}
	return nil
}

// ChannelInfo is a reduced channel view for callers that only need names.
type ChannelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListText returns the guild's text channels.
func (m *Manager) ListText(s *discordgo.Session, guildID string) ([]ChannelInfo, error) {
	chans, err := s.GuildChannels(guildID)
	if err != nil {
		return nil, err
	}
	out := make([]ChannelInfo, 0, len(chans))
	for _, ch := range chans {
		if ch.Type == discordgo.ChannelTypeGuildText {
			out = append(out, ChannelInfo{ID: ch.ID, Name: ch.Name})
		}
	}
	return out, nil
}
