package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListenTCP_PortInUse(t *testing.T) {
	req := require.New(t)

	// Given a port already taken
	first, err := ListenTCP("127.0.0.1:0")
	req.NoError(err)
	defer func() { _ = first.Close() }()

	// When a second listener asks for it
	_, err = ListenTCP(first.Addr().String())

	// Then a bind error with a remediation is returned
	var bindErr *BindError
	req.True(errors.As(err, &bindErr))
	req.Equal("tcp", bindErr.Network)
	req.Contains(bindErr.Remediation(), "lsof -i :")
	req.Contains(bindErr.Remediation(), "CHAT_TCP_PORT")
}

func TestListenUDP_PortInUse(t *testing.T) {
	req := require.New(t)

	first, err := ListenUDP("127.0.0.1:0")
	req.NoError(err)
	defer func() { _ = first.Close() }()

	_, err = ListenUDP(first.LocalAddr().String())

	var bindErr *BindError
	req.True(errors.As(err, &bindErr))
	req.Equal("udp", bindErr.Network)
}
