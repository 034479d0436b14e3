package proposal

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/snowledge-labs/snowvote/src/shared/types"
	"github.com/snowledge-labs/snowvote/src/voting"
	"gorm.io/gorm"
)

// Interaction custom ids. The per-session selects carry the draft
// correlation id after the separator.
const (
	customIDSubmit      = "idea_submit"
	customIDIdeaModal   = "idea_modal"
	customIDFormat      = "idea_format"
	customIDContributor = "idea_contributor"
	customIDSep         = "|"
)

// eventKind is decoded once from the incoming custom id, then switched on.
type eventKind int

const (
	evNone eventKind = iota
	evSubmitButton
	evIdeaModal
	evFormatSelect
	evContributorSelect
)

type interactionEvent struct {
	kind    eventKind
	session string
}

func decodeCustomID(id string) interactionEvent {
	name, session := id, ""
	if idx := strings.Index(id, customIDSep); idx >= 0 {
		name, session = id[:idx], id[idx+1:]
	}
	switch name {
	case customIDSubmit:
		return interactionEvent{kind: evSubmitButton}
	case customIDIdeaModal:
		return interactionEvent{kind: evIdeaModal}
	case customIDFormat:
		return interactionEvent{kind: evFormatSelect, session: session}
	case customIDContributor:
		return interactionEvent{kind: evContributorSelect, session: session}
	}
	return interactionEvent{kind: evNone}
}

type Config struct {
	DB      *gorm.DB
	Service *voting.Service
	Drafts  *DraftStore
}

// Handler drives the multi-step submission flow: button, modal, format
// select, contributor select, then proposal row plus announcement.
type Handler struct {
	config Config
}

func NewHandler(config Config) *Handler {
	return &Handler{config: config}
}

func (h *Handler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		ev := decodeCustomID(data.CustomID)
		switch ev.kind {
		case evSubmitButton:
			h.handleSubmitButton(s, i)
		case evFormatSelect:
			h.handleFormatSelect(s, i, ev.session, data.Values)
		case evContributorSelect:
			h.handleContributorSelect(s, i, ev.session, data.Values)
		case evIdeaModal, evNone:
			// Not ours.
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if decodeCustomID(data.CustomID).kind == evIdeaModal {
			h.handleModalSubmit(s, i, data)
		}
	}
}

func (h *Handler) handleSubmitButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customIDIdeaModal,
			Title:    "Propose an idea",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  "subject",
						Label:     "What is the subject?",
						Style:     discordgo.TextInputShort,
						Required:  true,
						MaxLength: 80,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  "description",
						Label:     "Describe your idea",
						Style:     discordgo.TextInputParagraph,
						Required:  true,
						MaxLength: 200,
					},
				}},
			},
		},
	})
	if err != nil {
		log.Printf("proposal: show idea modal: %v", err)
	}
}

func (h *Handler) handleModalSubmit(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData) {
	subject := textInputValue(data, "subject")
	description := textInputValue(data, "description")
	if subject == "" || description == "" {
		h.respondEphemeral(s, i, "Subject and description are required.")
		return
	}

	id, err := h.config.Drafts.Create(context.Background(), Draft{
		GuildID:     i.GuildID,
		UserID:      interactionUserID(i),
		Subject:     subject,
		Description: description,
	})
	if err != nil {
		log.Printf("proposal: create draft: %v", err)
		h.respondEphemeral(s, i, "Something went wrong, please try again.")
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Select the format for your proposal:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID:    customIDFormat + customIDSep + id,
						Placeholder: "Choose the format",
						Options: []discordgo.SelectMenuOption{
							{Label: "Whitepaper", Value: "Whitepaper"},
							{Label: "Masterclass", Value: "Masterclass"},
						},
					},
				}},
			},
		},
	})
	if err != nil {
		log.Printf("proposal: format select response: %v", err)
	}
}

func (h *Handler) handleFormatSelect(s *discordgo.Session, i *discordgo.InteractionCreate, session string, values []string) {
	if len(values) == 0 {
		return
	}
	ctx := context.Background()
	draft, err := h.config.Drafts.Get(ctx, session)
	if err != nil {
		h.updateEphemeral(s, i, "This submission has expired, please start over.")
		return
	}
	draft.Format = values[0]
	if err := h.config.Drafts.Save(ctx, session, *draft); err != nil {
		log.Printf("proposal: save draft %s: %v", session, err)
		h.updateEphemeral(s, i, "Something went wrong, please try again.")
		return
	}

	h.updateEphemeral(s, i, "✅ Format selected: **"+draft.Format+"**")

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: "Do you want to be a contributor for this idea?",
		Flags:   discordgo.MessageFlagsEphemeral,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    customIDContributor + customIDSep + session,
					Placeholder: "Do you want to be a contributor?",
					Options: []discordgo.SelectMenuOption{
						{Label: "Yes", Value: "yes"},
						{Label: "No", Value: "no"},
					},
				},
			}},
		},
	})
	if err != nil {
		log.Printf("proposal: contributor select followup: %v", err)
	}
}

func (h *Handler) handleContributorSelect(s *discordgo.Session, i *discordgo.InteractionCreate, session string, values []string) {
	if len(values) == 0 {
		return
	}
	ctx := context.Background()
	contributor := values[0] == "yes"

	draft, err := h.config.Drafts.Get(ctx, session)
	if err != nil {
		h.updateEphemeral(s, i, "This submission has expired, please start over.")
		return
	}

	var link types.GuildLink
	if err := h.config.DB.First(&link, "guild_id = ?", draft.GuildID).Error; err != nil {
		log.Printf("proposal: no community linked to guild %s", draft.GuildID)
		h.updateEphemeral(s, i, "This server is not linked to a community.")
		return
	}
	var submitter types.User
	if err := h.config.DB.First(&submitter, "discord_id = ?", draft.UserID).Error; err != nil {
		log.Printf("proposal: discord user %s not found when creating proposal", draft.UserID)
		h.updateEphemeral(s, i, "Your Discord account is not linked to a community profile.")
		return
	}

	// A duplicate submission (same title and format still in progress)
	// is announced again but not recreated.
	if _, err := h.config.Service.FindOpenProposal(ctx, link.CommunityID, draft.Subject, draft.Format); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("proposal: lookup open proposal: %v", err)
		}
		_, err = h.config.Service.SubmitProposal(ctx, link.CommunityID, submitter.ID, voting.Submission{
			Title:         draft.Subject,
			Description:   draft.Description,
			Format:        draft.Format,
			IsContributor: contributor,
		})
		if err != nil {
			log.Printf("proposal: create proposal: %v", err)
			h.updateEphemeral(s, i, "Could not create your proposal, please try again.")
			return
		}
	}

	if err := h.announce(s, &link, draft, contributor); err != nil {
		log.Printf("proposal: announce in guild %s: %v", draft.GuildID, err)
	}

	if err := h.config.Drafts.Delete(ctx, session); err != nil {
		log.Printf("proposal: delete draft %s: %v", session, err)
	}
	h.updateEphemeral(s, i, "✅ Your proposal has been sent for voting!")
}

// announce posts the vote message and seeds the four vote reactions.
func (h *Handler) announce(s *discordgo.Session, link *types.GuildLink, draft *Draft, contributor bool) error {
	if link.VoteChannelID == "" {
		return errors.New("no vote channel assigned for guild")
	}
	msg, err := s.ChannelMessageSend(link.VoteChannelID, BuildAnnouncement(draft.UserID, *draft, contributor))
	if err != nil {
		return err
	}
	for _, emoji := range VoteReactions {
		if err := s.MessageReactionAdd(msg.ChannelID, msg.ID, emoji); err != nil {
			log.Printf("proposal: seed reaction %s: %v", emoji, err)
		}
	}
	return nil
}

func (h *Handler) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("proposal: interaction response: %v", err)
	}
}

// updateEphemeral edits the component message the user interacted with,
// clearing its components so selects cannot be reused.
func (h *Handler) updateEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		log.Printf("proposal: interaction update: %v", err)
	}
}

// IdeaButton is the component row pinned in the propose channel.
func IdeaButton() discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "📝 Submit an idea",
			Style:    discordgo.PrimaryButton,
			CustomID: customIDSubmit,
		},
	}}
}

func textInputValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok && input.CustomID == customID {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
