package runtime

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"log/slog"
)

// Interpreter answers the commands a session sends as chat content.
// Answers are Info records for the issuing session only.
type Interpreter struct {
	log         *slog.Logger
	broadcaster contract.IBroadcaster
}

func NewInterpreter(log *slog.Logger, broadcaster contract.IBroadcaster) *Interpreter {
	return &Interpreter{log: log, broadcaster: broadcaster}
}

// Handle runs content issued by peer. Unknown commands are ignored.
func (i *Interpreter) Handle(peer contract.Peer, content string) {
	cmd := domain.ParseCommand(content)
	switch cmd.Name {
	case domain.CommandList:
		i.reply(peer, domain.UserListing(i.broadcaster.ListUsernames()))
	case domain.CommandHelp:
		i.reply(peer, domain.HelpText)
	case domain.CommandPrivate:
		// Only acknowledged: the recipient is not looked up.
		i.reply(peer, domain.PrivateAckText(cmd.Recipient, cmd.Text))
	case domain.CommandQuit:
		peer.Disconnect("quit command")
	default:
		i.log.Debug("Ignoring unknown command", "session_id", peer.ID(), "content", content)
	}
}

func (i *Interpreter) reply(peer contract.Peer, text string) {
	frame := codec.RecordFrame(domain.NewSystem(text, domain.KindInfo))
	if err := peer.Send(frame); err != nil {
		i.log.Warn("Command reply failed", "session_id", peer.ID(), "error", err)
		peer.Disconnect(err.Error())
	}
}
