package runtime

import (
	"chat-relay/contract"
	"cmp"
	"slices"
	"sync"
)

type member struct {
	peer contract.Peer
	seq  uint64
}

// Registry holds the active sessions, keyed by session id.
type Registry struct {
	mu      sync.RWMutex
	members map[string]member
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]member)}
}

// Insert adds a peer. Inserting the same id again keeps its original join position.
func (r *Registry) Insert(peer contract.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.members[peer.ID()]; ok {
		r.members[peer.ID()] = member{peer: peer, seq: existing.seq}
		return
	}
	r.nextSeq++
	r.members[peer.ID()] = member{peer: peer, seq: r.nextSeq}
}

// Remove reports whether the peer was still registered.
// Exactly one of several concurrent removals of the same peer returns true.
func (r *Registry) Remove(peer contract.Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[peer.ID()]; !ok {
		return false
	}
	delete(r.members, peer.ID())
	return true
}

// Snapshot returns the registered peers in join order.
// The slice is a copy and stays valid while the registry changes.
func (r *Registry) Snapshot() []contract.Peer {
	r.mu.RLock()
	members := make([]member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.RUnlock()

	slices.SortFunc(members, func(a, b member) int { return cmp.Compare(a.seq, b.seq) })
	peers := make([]contract.Peer, len(members))
	for i, m := range members {
		peers[i] = m.peer
	}
	return peers
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
