package runtime

import (
	"bytes"
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func decodeFrame(t *testing.T, frame []byte) domain.ChatRecord {
	t.Helper()
	reader := codec.NewReader(bytes.NewReader(frame), 0)
	record, err := reader.ReadRecord()
	require.NoError(t, err)
	return record
}

func TestBroadcaster_Broadcast_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	alice := newPeer(ctrl, "alice")
	bob := newPeer(ctrl, "bob")
	carol := newPeer(ctrl, "carol")
	broadcaster := NewBroadcaster(log, mockRegistry)

	// Given three registered sessions
	mockRegistry.EXPECT().Snapshot().Return([]contract.Peer{alice, bob, carol}).Times(1)

	// Then only bob and carol get the frame
	var frames [][]byte
	bob.EXPECT().Send(gomock.Any()).DoAndReturn(func(frame []byte) error {
		frames = append(frames, frame)
		return nil
	}).Times(1)
	carol.EXPECT().Send(gomock.Any()).DoAndReturn(func(frame []byte) error {
		frames = append(frames, frame)
		return nil
	}).Times(1)
	alice.EXPECT().Send(gomock.Any()).Times(0)

	// When alice says hello
	delivered := broadcaster.Broadcast(domain.NewText("alice", "hello"), alice)

	req.Equal(2, delivered)
	req.Len(frames, 2)
	record := decodeFrame(t, frames[0])
	req.Equal("alice", record.Sender)
	req.Equal("hello", record.Content)
	req.Equal(domain.KindText, record.Kind)
}

func TestBroadcaster_Broadcast_Without_Exclusion(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	alice := newPeer(ctrl, "alice")
	bob := newPeer(ctrl, "bob")
	broadcaster := NewBroadcaster(log, mockRegistry)

	mockRegistry.EXPECT().Snapshot().Return([]contract.Peer{alice, bob}).Times(1)
	alice.EXPECT().Send(gomock.Any()).Return(nil).Times(1)
	bob.EXPECT().Send(gomock.Any()).Return(nil).Times(1)

	// When the server announces something to everyone
	delivered := broadcaster.Broadcast(domain.NewSystem("bob joined the chat", domain.KindConnect), nil)

	// Then everyone gets it
	req.Equal(2, delivered)
}

func TestBroadcaster_Broadcast_Disconnects_Failed_Target_Only(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	alice := newPeer(ctrl, "alice")
	bob := newPeer(ctrl, "bob")
	carol := newPeer(ctrl, "carol")
	broadcaster := NewBroadcaster(log, mockRegistry)

	mockRegistry.EXPECT().Snapshot().Return([]contract.Peer{alice, bob, carol}).Times(1)

	// Given bob's outbox is full
	bob.EXPECT().Send(gomock.Any()).Return(errors.ErrOutboxFull).Times(1)
	bob.EXPECT().Disconnect(gomock.Any()).Times(1)

	// Then carol still gets the record
	carol.EXPECT().Send(gomock.Any()).Return(nil).Times(1)

	delivered := broadcaster.Broadcast(domain.NewText("alice", "hello"), alice)

	req.Equal(1, delivered)
}

func TestBroadcaster_ListUsernames(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := NewRegistry()
	broadcaster := NewBroadcaster(log, registry)

	// Given an empty registry
	req.Empty(broadcaster.ListUsernames())

	// When alice and bob join
	registry.Insert(newPeer(ctrl, "alice"))
	registry.Insert(newPeer(ctrl, "bob"))

	// Then both are listed
	req.Equal([]string{"alice", "bob"}, broadcaster.ListUsernames())
}
