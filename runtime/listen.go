package runtime

import (
	"fmt"
	"net"
	"strings"
)

// BindError reports a listening socket that could not be opened.
type BindError struct {
	Network string
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot listen on %s %s: %v", e.Network, e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Remediation tells an operator how to free or change the port.
func (e *BindError) Remediation() string {
	_, port, err := net.SplitHostPort(e.Address)
	if err != nil {
		port = e.Address
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "The %s port %s is probably used by another process.\n", strings.ToUpper(e.Network), port)
	sb.WriteString("To fix it:\n")
	sb.WriteString("  1. Stop the other chat server instance if one is running\n")
	sb.WriteString("  2. Pick another port with CHAT_TCP_PORT / CHAT_UDP_PORT\n")
	sb.WriteString("  3. Wait a few seconds for the OS to release the port\n")
	fmt.Fprintf(&sb, "Find the owner with: lsof -i :%s (Linux/macOS) or netstat -ano | findstr :%s (Windows)", port, port)
	return sb.String()
}

func ListenTCP(address string) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, &BindError{Network: "tcp", Address: address, Err: err}
	}
	return ln, nil
}

func ListenUDP(address string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, &BindError{Network: "udp", Address: address, Err: err}
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, &BindError{Network: "udp", Address: address, Err: err}
	}
	return conn, nil
}
