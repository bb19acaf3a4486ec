package domain

import (
	"strings"
)

// CommandPrefix marks chat content that must be interpreted instead of relayed.
const CommandPrefix = "/"

const (
	CmdQuit    = "/quit"
	CmdList    = "/list"
	CmdHelp    = "/help"
	CmdPrivate = "/msg"
	CmdUDP     = "/udp"
)

type CommandName string

const (
	CommandUnknown CommandName = ""
	CommandQuit    CommandName = "quit"
	CommandList    CommandName = "list"
	CommandHelp    CommandName = "help"
	CommandPrivate CommandName = "msg"
)

// Command is the parsed form of prefixed chat content.
// Recipient and Text are only set for CommandPrivate.
type Command struct {
	Name      CommandName
	Recipient string
	Text      string
	Raw       string
}

// IsCommand reports whether content starts with the command prefix.
func IsCommand(content string) bool {
	return strings.HasPrefix(content, CommandPrefix)
}

// ParseCommand classifies prefixed content.
// "/msg" needs both a recipient and a text, otherwise the command is unknown.
func ParseCommand(content string) Command {
	cmd := Command{Raw: content}
	trimmed := strings.TrimSpace(content)
	switch {
	case trimmed == CmdList:
		cmd.Name = CommandList
	case trimmed == CmdHelp:
		cmd.Name = CommandHelp
	case trimmed == CmdQuit:
		cmd.Name = CommandQuit
	case strings.HasPrefix(content, CmdPrivate+" "):
		parts := strings.SplitN(strings.TrimPrefix(content, CmdPrivate+" "), " ", 2)
		if len(parts) == 2 && parts[0] != "" {
			cmd.Name = CommandPrivate
			cmd.Recipient = parts[0]
			cmd.Text = parts[1]
		}
	}
	return cmd
}

// HelpText is the static command summary sent on "/help".
const HelpText = "📋 Available commands:\n" +
	"  /list - Show connected users\n" +
	"  /msg [user] [message] - Send a private message\n" +
	"  /help - Show this help\n" +
	"  /quit - Leave the chat"
