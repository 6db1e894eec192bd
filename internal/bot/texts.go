package bot

// User-facing copy. Kept in one place so wording changes never touch flow
// logic.
const (
	msgInternalError    = "Something went wrong on my side. Please try again in a moment."
	msgNoConversation   = "I wasn't expecting that. Open the menu with /menu."
	msgLostConversation = "I lost track of our conversation, sorry. Let's start over with /menu."
	msgRestartConfirm   = "You have an unfinished form. Starting over will discard it. Are you sure?"
	msgRestartAborted   = "Okay, carrying on. Repeat your last answer or tap a button above."
	msgCancelled        = "Conversation cancelled. Open the menu anytime with /menu."
	msgBugPrompt        = "Describe the problem in one message and I'll pass it on."
	msgUnknownCommand   = "I don't know that command. Try /help."
	msgDonationThanks   = "Thank you so much for supporting the hikes! ⭐"
	msgNotMember        = "This bot is for group members. Join us first, then come back!"
	msgNotAdmin         = "This area is for admins only."

	msgHelp = "Here's what I can do:\n" +
		"/menu — main menu\n" +
		"/restart — start the conversation over\n" +
		"/cancel — abandon the current conversation\n" +
		"/privacy — review your privacy choices\n" +
		"/donate — support the project\n" +
		"/bug — report a problem"

	msgMenu = "What would you like to do?"
)
