package runtime

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"log/slog"

	"github.com/samber/lo"
)

// Broadcaster delivers records to the sessions of a registry.
//
// The frame is encoded once and queued on each target without holding the registry lock,
// so a stuck target never delays the others. A target whose queue refuses the frame
// is disconnected, delivery to the remaining targets goes on.
type Broadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry) *Broadcaster {
	return &Broadcaster{log: log, registry: registry}
}

// Broadcast returns the number of sessions the record was queued for.
// A nil excluded delivers to everyone.
func (b *Broadcaster) Broadcast(record domain.ChatRecord, excluded contract.Peer) int {
	frame := codec.RecordFrame(record)
	excludedID := ""
	if excluded != nil {
		excludedID = excluded.ID()
	}

	delivered := 0
	for _, peer := range b.registry.Snapshot() {
		if excludedID != "" && peer.ID() == excludedID {
			continue
		}
		if err := peer.Send(frame); err != nil {
			b.log.Warn("Broadcast target failed, disconnecting it",
				"session_id", peer.ID(), "username", peer.Username(), "error", err)
			peer.Disconnect(err.Error())
			continue
		}
		delivered++
	}
	b.log.Debug("Broadcast", "kind", record.Kind, "sender", record.Sender, "delivered", delivered)
	return delivered
}

// ListUsernames returns the usernames of the registered sessions in join order.
func (b *Broadcaster) ListUsernames() []string {
	return lo.Map(b.registry.Snapshot(), func(peer contract.Peer, _ int) string {
		return peer.Username()
	})
}
