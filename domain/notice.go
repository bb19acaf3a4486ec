package domain

import (
	"fmt"
	"strings"
)

// QuitNotice is the last record a client receives before its stream is closed.
// Clients print it too when they lose the connection.
const QuitNotice = "Disconnected from server"

func WelcomeText(username string) string {
	return fmt.Sprintf("Welcome %s!", username)
}

func JoinedText(username string) string {
	return username + " joined the chat"
}

func LeftText(username string) string {
	return username + " left the chat"
}

func PrivateAckText(recipient, text string) string {
	return fmt.Sprintf("Private message for %s: %s", recipient, text)
}

// UserListing renders the answer to "/list", one bullet per username.
func UserListing(usernames []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Connected users (%d):", len(usernames))
	for _, name := range usernames {
		sb.WriteString("\n  • ")
		sb.WriteString(name)
	}
	return sb.String()
}
