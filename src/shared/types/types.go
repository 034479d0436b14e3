package types

import "time"

// Proposal statuses
const (
	StatusInProgress = "in_progress"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
)

// Vote choices
const (
	ChoiceFor     = "for"
	ChoiceAgainst = "against"
)

// FormatToBeDefined is the sentinel written when a proposal is accepted
// but its format vote was lost or tied.
const FormatToBeDefined = "to be defined"

// Communities
type Community struct {
	ID        uint64 `gorm:"primaryKey"`
	Slug      string `gorm:"size:64;uniqueIndex;not null"`
	Name      string `gorm:"size:128;not null"`
	CreatedAt time.Time
}

// Users
type User struct {
	ID        uint64 `gorm:"primaryKey"`
	Username  string `gorm:"size:64;not null"`
	Email     string `gorm:"size:256"`
	DiscordID string `gorm:"size:64;index"`
	CreatedAt time.Time
}

// Community members (learners); the member count is the quorum denominator
type Member struct {
	CommunityID uint64 `gorm:"primaryKey"`
	UserID      uint64 `gorm:"primaryKey"`
	Role        string `gorm:"size:32;default:learner"`
	JoinedAt    time.Time
}

// Link between a Discord guild and a community, with the channels the bot
// uses for the proposal workflow
type GuildLink struct {
	GuildID          string `gorm:"primaryKey;size:64"`
	CommunityID      uint64 `gorm:"index;not null"`
	ProposeChannelID string `gorm:"size:64"`
	VoteChannelID    string `gorm:"size:64"`
	ResultChannelID  string `gorm:"size:64"`
	CreatedAt        time.Time
}

// Proposals
type Proposal struct {
	ID            uint64 `gorm:"primaryKey"`
	CommunityID   uint64 `gorm:"index;not null"`
	SubmitterID   uint64 `gorm:"not null"`
	Title         string `gorm:"size:80;not null"`
	Description   string `gorm:"size:200;not null"`
	Format        string `gorm:"size:40"`
	Comments      string `gorm:"size:400"`
	IsContributor bool   `gorm:"default:false"`
	Status        string `gorm:"size:20;index;default:in_progress"`
	EndedAt       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Votes; at most one row per (proposal, user)
type Vote struct {
	ID            uint64 `gorm:"primaryKey"`
	ProposalID    uint64 `gorm:"uniqueIndex:idx_votes_proposal_user;not null"`
	UserID        uint64 `gorm:"uniqueIndex:idx_votes_proposal_user;not null"`
	Choice        string `gorm:"size:20;not null"`
	Comment       string `gorm:"size:400"`
	FormatChoice  string `gorm:"size:20"`
	FormatComment string `gorm:"size:400"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
