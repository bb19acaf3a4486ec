package runtime

import (
	"chat-relay/contract"
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// DefaultMaxDatagramSize is the largest datagram relayed when none is configured.
const DefaultMaxDatagramSize = 1024

// DatagramRelay forwards every text datagram it receives to the datagram
// target of every active session, the sender included.
// Nothing is retried or acknowledged.
type DatagramRelay struct {
	log      *slog.Logger
	conn     contract.DatagramConn
	registry contract.IRegistry
	maxSize  int
}

func NewDatagramRelay(log *slog.Logger, conn contract.DatagramConn, registry contract.IRegistry, maxSize int) *DatagramRelay {
	if maxSize <= 0 {
		maxSize = DefaultMaxDatagramSize
	}
	return &DatagramRelay{log: log, conn: conn, registry: registry, maxSize: maxSize}
}

// Run relays until the socket is closed.
func (r *DatagramRelay) Run(ctx context.Context) error {
	r.log.Info("Relaying datagrams", "address", r.conn.LocalAddr().String())
	// One extra byte tells an oversized datagram from a full one
	buf := make([]byte, r.maxSize+1)
	for {
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			r.log.Warn("Datagram read failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}
		switch {
		case n == 0:
			continue
		case n > r.maxSize:
			r.log.Debug("Dropping oversized datagram", "from", from.String(), "limit", r.maxSize)
			continue
		case !utf8.Valid(buf[:n]):
			r.log.Debug("Dropping datagram that is not UTF-8", "from", from.String())
			continue
		}
		sent := r.Relay(buf[:n])
		r.log.Debug("Datagram relayed", "from", from.String(), "bytes", n, "targets", sent)
	}
}

// Relay sends payload to every active session that announced a datagram port.
func (r *DatagramRelay) Relay(payload []byte) int {
	targets := lo.FilterMap(r.registry.Snapshot(), func(peer contract.Peer, _ int) (*net.UDPAddr, bool) {
		target := peer.DatagramTarget()
		return target, target != nil
	})

	sent := 0
	for _, target := range targets {
		if _, err := r.conn.WriteToUDP(payload, target); err != nil {
			r.log.Warn("Datagram send failed", "target", target.String(), "error", err)
			continue
		}
		sent++
	}
	return sent
}
