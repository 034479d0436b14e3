package results

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/snowledge-labs/snowvote/src/shared/data"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/snowledge-labs/snowvote/src/votebot/components/proposal"
	"gorm.io/gorm"
)

type MonitorConfig struct {
	DB      *gorm.DB
	Rdb     *redis.Client
	Session *discordgo.Session
}

// Monitor consumes resolution events published by the API path (direct
// votes and expiry sweeps) and surfaces them in the Discord results
// channel. Reaction-path resolutions are announced inline by the reaction
// handler and never reach this stream.
type Monitor struct {
	config MonitorConfig
	lastID string
}

func NewMonitor(config MonitorConfig) *Monitor {
	return &Monitor{
		config: config,
		// Skip whatever was on the stream before this process started.
		lastID: fmt.Sprintf("%d-0", time.Now().UnixMilli()),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	log.Println("Starting resolution monitor")
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping resolution monitor")
			return
		case <-ticker.C:
			if err := m.checkNewResolutions(ctx); err != nil {
				log.Printf("results: read resolutions: %v", err)
			}
		}
	}
}

func (m *Monitor) checkNewResolutions(ctx context.Context) error {
	events, lastID, err := data.ReadResolutions(ctx, m.config.Rdb, m.lastID)
	if err != nil {
		return err
	}
	m.lastID = lastID

	for _, ev := range events {
		if err := m.announce(ev); err != nil {
			log.Printf("results: announce proposal %d: %v", ev.ProposalID, err)
		}
	}
	return nil
}

func (m *Monitor) announce(ev data.ResolutionEvent) error {
	var link types.GuildLink
	if err := m.config.DB.First(&link, "community_id = ?", ev.CommunityID).Error; err != nil {
		// Community has no Discord presence; nothing to surface.
		return nil
	}
	if link.ResultChannelID == "" {
		return fmt.Errorf("no results channel for guild %s", link.GuildID)
	}

	msg := proposal.ResultMessage(ev.Status, ev.Title, ev.Format)
	if _, err := m.config.Session.ChannelMessageSend(link.ResultChannelID, msg); err != nil {
		return err
	}

	m.retractAnnouncement(&link, ev)
	return nil
}

// retractAnnouncement deletes the matching vote-channel announcement, if
// one exists. Best-effort: proposals submitted through the API may never
// have been announced.
func (m *Monitor) retractAnnouncement(link *types.GuildLink, ev data.ResolutionEvent) {
	if link.VoteChannelID == "" {
		return
	}
	msgs, err := m.config.Session.ChannelMessages(link.VoteChannelID, 100, "", "", "")
	if err != nil {
		log.Printf("results: scan vote channel %s: %v", link.VoteChannelID, err)
		return
	}
	me := m.config.Session.State.User.ID
	for _, msg := range msgs {
		if msg.Author == nil || msg.Author.ID != me {
			continue
		}
		ann, ok := proposal.ParseAnnouncement(msg.Content)
		if !ok || ann.Subject != ev.Title {
			continue
		}
		if err := m.config.Session.ChannelMessageDelete(link.VoteChannelID, msg.ID); err != nil {
			log.Printf("results: delete announcement %s: %v", msg.ID, err)
		}
		return
	}
}
