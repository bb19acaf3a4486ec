//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"net"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Peer is what the registry and the broadcast engine know about a session.
// Send must not block: it queues an already encoded frame.
// Disconnect must be idempotent.
type Peer interface {
	ID() string
	Username() string
	Send(frame []byte) error
	Disconnect(reason string)
	DatagramTarget() *net.UDPAddr
}

// DatagramConn is the socket the datagram relay reads from and writes to.
type DatagramConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	LocalAddr() net.Addr
}

type IRegistry interface {
	Insert(peer Peer)
	Remove(peer Peer) bool
	Snapshot() []Peer
	Len() int
}

type IBroadcaster interface {
	Broadcast(record domain.ChatRecord, excluded Peer) int
	ListUsernames() []string
}
