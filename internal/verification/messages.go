package verification

// Reaction options offered on bulk-kick confirmation prompts.
const (
	OptionApprove = "✅" // white heavy check mark
	OptionDeny    = "❌" // cross mark
)

// onJoinMessage is sent via DM once a member joins the guild.
const onJoinMessage = `Hello! Welcome to the server!

As a new member, you have read-only access to a few select channels to give you a taste of what the community is like.

In order to see the rest of the channels and to send messages, you first have to accept our rules. To do so, please visit <#%d>. Thank you!`

// verifiedMessage is sent via DM once a member verifies.
const verifiedMessage = `Thanks for verifying yourself!

You now have access to the rest of the server. Feel free to review the rules at any point.

Additionally, if you'd like to receive notifications for the announcements we post from time to time, you can send ` + "`/subscribe`" + ` to <#%d> at any time to assign yourself the **Announcements** role.`

// kickedMessage is sent via DM to members kicked for failing to verify.
const kickedMessage = "Hi! You have been automatically kicked from the server as you have failed to accept our rules within `%d` days. If this was an accident, please feel free to join again."

// reminderMessage is posted periodically in the verification channel.
const reminderMessage = "<@&%d>\n\nWelcome to the server! Please read the rules and use `/accept` to gain permissions to send messages in the community!\n\nYou will be kicked if you don't verify within `%d` days."

// confirmationPrompt asks privileged members whether a mass removal may proceed.
const confirmationPrompt = "<@&%d> Verification determined that `%d` members should be kicked as they haven't verified in `%d` days. This is `%.2f%%` of the guild's population. Proceed?"

// Confirmation prompt outcome edits.
const (
	approvedOutcome = ":ok_hand: Request to kick `%d` members was authorized!"
	deniedOutcome   = ":warning: Request to kick `%d` members was denied!"
)

// Audit log reasons attached to lifecycle actions.
const (
	warnReason   = "Member has not verified in %d days"
	kickReason   = "Member has not verified in %d days"
	acceptReason = "Accepted the rules"
)

// InstructionsMessage is sent when someone chats in the verification
// channel without verifying. The verb takes the author's mention.
const InstructionsMessage = "%s Please use `/accept` to verify that you accept our rules, and gain access to the rest of the server."
