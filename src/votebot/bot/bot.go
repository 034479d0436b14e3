package bot

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/snowledge-labs/snowvote/src/shared/data"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/snowledge-labs/snowvote/src/votebot/components/channels"
	"github.com/snowledge-labs/snowvote/src/votebot/components/proposal"
	"github.com/snowledge-labs/snowvote/src/votebot/components/reaction"
	"github.com/snowledge-labs/snowvote/src/votebot/components/results"
	"github.com/snowledge-labs/snowvote/src/voting"
	"gorm.io/gorm"
)

type Config struct {
	Token string
	DB    *gorm.DB
	Redis *redis.Client
}

type Bot struct {
	session         *discordgo.Session
	db              *gorm.DB
	rdb             *redis.Client
	config          Config
	service         *voting.Service
	channelManager  *channels.Manager
	proposalHandler *proposal.Handler
	reactionHandler *reaction.Handler
	resultMonitor   *results.Monitor
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

func New(config Config) (*Bot, error) {
	// Load settings
	if err := data.LoadSettings(config.DB); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	bot := &Bot{
		session: dg,
		db:      config.DB,
		rdb:     config.Redis,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	bot.initializeComponents()
	bot.registerHandlers()

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	return bot, nil
}

func (b *Bot) initializeComponents() {
	b.service = voting.NewService(b.db, voting.RedisPublisher{Rdb: b.rdb})
	b.channelManager = channels.NewManager(b.db)
	b.proposalHandler = proposal.NewHandler(proposal.Config{
		DB:      b.db,
		Service: b.service,
		Drafts:  proposal.NewDraftStore(b.rdb),
	})
	b.reactionHandler = reaction.NewHandler(reaction.Config{
		DB:      b.db,
		Service: b.service,
	})
	b.resultMonitor = results.NewMonitor(results.MonitorConfig{
		DB:      b.db,
		Rdb:     b.rdb,
		Session: b.session,
	})
}

func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleGuildCreate)
	b.session.AddHandler(b.proposalHandler.HandleInteraction)
	b.session.AddHandler(b.reactionHandler.HandleReactionAdd)
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Stop() {
	b.cancel()
	b.wg.Wait()
	b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("Discord bot logged in as %s", event.User.Username)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.resultMonitor.Start(b.ctx)
	}()
}

// handleGuildCreate fires for every guild on connect and whenever the bot
// joins a new one; the workflow channels are (re)ensured each time.
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	var link types.GuildLink
	if err := b.db.First(&link, "guild_id = ?", g.ID).Error; err != nil {
		log.Printf("Guild %s (%s) has no community link, skipping channel setup", g.Name, g.ID)
		return
	}

	names := channels.Names{
		Propose: settingOr("propose_channel", "proposals"),
		Vote:    settingOr("vote_channel", "proposal-votes"),
		Result:  settingOr("result_channel", "proposal-results"),
	}
	if _, err := b.channelManager.Ensure(s, g.ID, names); err != nil {
		log.Printf("Failed to ensure channels for guild %s: %v", g.ID, err)
	}
}

func settingOr(name, def string) string {
	if v := data.GetSetting(name); v != "" {
		return v
	}
	return def
}
