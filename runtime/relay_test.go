package runtime

import (
	"chat-relay/contract"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func listenLoopbackUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readDatagram(t *testing.T, conn *net.UDPConn, wait time.Duration) (string, bool) {
	t.Helper()
	buf := make([]byte, 2048)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return "", false
	}
	return string(buf[:n]), true
}

func TestDatagramRelay_Relays_To_Every_Target(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)

	relayConn := listenLoopbackUDP(t)
	aliceConn := listenLoopbackUDP(t)
	bobConn := listenLoopbackUDP(t)

	// Given alice and bob announced a datagram port and carol did not
	alice := newPeer(ctrl, "alice")
	alice.EXPECT().DatagramTarget().Return(aliceConn.LocalAddr().(*net.UDPAddr)).AnyTimes()
	bob := newPeer(ctrl, "bob")
	bob.EXPECT().DatagramTarget().Return(bobConn.LocalAddr().(*net.UDPAddr)).AnyTimes()
	carol := newPeer(ctrl, "carol")
	carol.EXPECT().DatagramTarget().Return(nil).AnyTimes()
	mockRegistry.EXPECT().Snapshot().Return([]contract.Peer{alice, bob, carol}).AnyTimes()

	relay := NewDatagramRelay(log, relayConn, mockRegistry, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	// When alice sends a datagram to the relay
	_, err := aliceConn.WriteToUDP([]byte("ping"), relayConn.LocalAddr().(*net.UDPAddr))
	req.NoError(err)

	// Then both alice and bob get it, the sender included
	got, ok := readDatagram(t, bobConn, time.Second)
	req.True(ok)
	req.Equal("ping", got)
	got, ok = readDatagram(t, aliceConn, time.Second)
	req.True(ok)
	req.Equal("ping", got)

	// When the socket is closed the relay ends without error
	cancel()
	req.NoError(relayConn.Close())
	req.NoError(<-done)
}

func TestDatagramRelay_Drops_Invalid_Datagrams(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)

	relayConn := listenLoopbackUDP(t)
	bobConn := listenLoopbackUDP(t)

	bob := newPeer(ctrl, "bob")
	bob.EXPECT().DatagramTarget().Return(bobConn.LocalAddr().(*net.UDPAddr)).AnyTimes()
	mockRegistry.EXPECT().Snapshot().Return([]contract.Peer{bob}).AnyTimes()

	relay := NewDatagramRelay(log, relayConn, mockRegistry, 8)
	go func() { _ = relay.Run(context.Background()) }()
	relayAddr := relayConn.LocalAddr().(*net.UDPAddr)

	// When an oversized and a non UTF-8 datagram are sent, followed by a valid one
	_, err := bobConn.WriteToUDP([]byte(strings.Repeat("x", 9)), relayAddr)
	req.NoError(err)
	_, err = bobConn.WriteToUDP([]byte{0xff, 0xfe}, relayAddr)
	req.NoError(err)
	_, err = bobConn.WriteToUDP([]byte("ok"), relayAddr)
	req.NoError(err)

	// Then only the valid one comes back
	got, ok := readDatagram(t, bobConn, time.Second)
	req.True(ok)
	req.Equal("ok", got)
	_, ok = readDatagram(t, bobConn, 100*time.Millisecond)
	req.False(ok)
}

func TestDatagramRelay_Backs_Off_On_Read_Errors(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockConn := mocks.NewMockDatagramConn(ctrl)

	// Given a socket that keeps failing without being closed
	var reads atomic.Int32
	mockConn.EXPECT().LocalAddr().Return(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}).AnyTimes()
	mockConn.EXPECT().
		ReadFromUDP(gomock.Any()).
		DoAndReturn(func([]byte) (int, *net.UDPAddr, error) {
			reads.Add(1)
			return 0, nil, fmt.Errorf("connection refused")
		}).
		AnyTimes()

	relay := NewDatagramRelay(log, mockConn, mockRegistry, 64)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// When the relay runs until the context ends
	req.NoError(relay.Run(ctx))

	// Then reads were paced instead of retried in a tight loop
	req.Positive(reads.Load())
	req.LessOrEqual(reads.Load(), int32(10))
}
