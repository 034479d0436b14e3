package proposal

import (
	"fmt"
	"regexp"
	"strings"
)

// announcePrefix marks bot-authored vote announcements; the reaction
// handler only processes messages carrying it.
const announcePrefix = "📢 New idea proposed by"

// VoteReactions are seeded on every announcement, in display order.
var VoteReactions = []string{"✅", "❌", "👍", "👎"}

var proposedByRe = regexp.MustCompile(`by <@!?([0-9]+)>`)

// Announcement is the structured part of a vote-channel message.
type Announcement struct {
	Subject    string
	Format     string
	ProposedBy string
}

// BuildAnnouncement renders the vote-channel message for a draft. The
// **Subject** and **Format** lines are load-bearing: ParseAnnouncement
// reads them back when reactions arrive.
func BuildAnnouncement(discordUserID string, d Draft, contributor bool) string {
	yn := "No"
	if contributor {
		yn = "Yes"
	}
	return fmt.Sprintf(
		"%s <@%s> :\n\n**Subject** : %s\n**Description** : %s\n**Format** : %s\n**Contributor** : %s\n\n"+
			"**Vote Subject** : ✅ = Yes | ❌ = No\n**Vote Format** : 👍 = Yes | 👎 = No",
		announcePrefix, discordUserID, d.Subject, d.Description, d.Format, yn)
}

// ParseAnnouncement extracts the structured fields from a vote-channel
// message. ok is false for anything that is not one of our announcements.
func ParseAnnouncement(content string) (Announcement, bool) {
	if !strings.HasPrefix(content, announcePrefix) {
		return Announcement{}, false
	}
	var a Announcement
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "**Subject** : "):
			a.Subject = strings.TrimSpace(strings.TrimPrefix(line, "**Subject** : "))
		case strings.HasPrefix(line, "**Format** : "):
			a.Format = strings.TrimSpace(strings.TrimPrefix(line, "**Format** : "))
		}
	}
	if m := proposedByRe.FindStringSubmatch(content); len(m) > 1 {
		a.ProposedBy = m[1]
	}
	if a.Subject == "" {
		return Announcement{}, false
	}
	return a, true
}

// ResultMessage renders the results-channel message for a terminal status.
func ResultMessage(status, subject, format string) string {
	if status == "accepted" {
		return fmt.Sprintf("✅ The following proposal has been **approved**:\n**Subject** : %s\n**Format** : %s", subject, format)
	}
	return fmt.Sprintf("❌ The following proposal has been rejected:\n**Subject** : %s\n**Format** : %s", subject, format)
}

// SubmissionExplanation is pinned in the propose channel.
func SubmissionExplanation(voteChannelID string) string {
	return "🎉 **Submit your ideas!**\n\n" +
		"To submit an idea:\n" +
		"1. Click the **📝 Submit an idea** button below.\n" +
		"2. Enter the subject of your idea and its description.\n" +
		"3. Select the desired format (**Whitepaper** or **Masterclass**).\n" +
		"4. Indicate if you want to be a contributor for this idea.\n\n" +
		"Your proposal will then be sent to the <#" + voteChannelID + "> channel for everyone to vote!"
}

// VoteExplanation is pinned in the vote channel.
func VoteExplanation() string {
	return "📢 **How to vote on proposals**\n\n" +
		"- Each new idea will appear here.\n" +
		"- To vote on the subject: ✅ = Yes, ❌ = No\n" +
		"- To vote on the format: 👍 = Yes, 👎 = No\n\n" +
		"Once enough votes are collected, the proposal will be either approved or rejected and moved to the results channel."
}

// ResultExplanation is pinned in the results channel.
func ResultExplanation() string {
	return "🏁 **Results of votes**\n\n" +
		"- All approved or rejected proposals will appear here.\n" +
		"- ✅ = Approved\n" +
		"- ❌ = Rejected\n\n" +
		"You can follow the outcome of each idea in this channel."
}
