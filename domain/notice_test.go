package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserListing(t *testing.T) {
	req := require.New(t)

	req.Equal("Connected users (0):", UserListing(nil))
	req.Equal("Connected users (2):\n  • alice\n  • bob", UserListing([]string{"alice", "bob"}))
	// Duplicate usernames are listed twice
	req.Equal("Connected users (2):\n  • alice\n  • alice", UserListing([]string{"alice", "alice"}))
}

func TestNoticeTexts(t *testing.T) {
	req := require.New(t)

	req.Equal("Welcome alice!", WelcomeText("alice"))
	req.Equal("alice joined the chat", JoinedText("alice"))
	req.Equal("alice left the chat", LeftText("alice"))
	req.Equal("Private message for bob: hi there", PrivateAckText("bob", "hi there"))
}
