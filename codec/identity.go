package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Identity payload fields.
const (
	fieldUsername     protowire.Number = 1
	fieldDatagramPort protowire.Number = 2
)

// Identity is the first frame a client sends after reading the stream header.
// DatagramPort is the local UDP port on which the client accepts relayed
// datagrams, 0 when it does not want any.
type Identity struct {
	Username     string
	DatagramPort int
}

// MarshalIdentity encodes an identity payload.
func MarshalIdentity(id Identity) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldUsername, protowire.BytesType)
	b = protowire.AppendString(b, id.Username)
	if id.DatagramPort > 0 {
		b = protowire.AppendTag(b, fieldDatagramPort, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(id.DatagramPort))
	}
	return b
}

// UnmarshalIdentity decodes an identity payload.
func UnmarshalIdentity(b []byte) (Identity, error) {
	var id Identity
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Identity{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldUsername && typ == protowire.BytesType:
			var err error
			if id.Username, n, err = consumeText(num, b); err != nil {
				return Identity{}, err
			}
		case num == fieldDatagramPort && typ == protowire.VarintType:
			var port uint64
			port, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				if port > 65535 {
					return Identity{}, fmt.Errorf("%w: datagram port %d out of range", ErrMalformedFrame, port)
				}
				id.DatagramPort = int(port)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Identity{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]
	}
	return id, nil
}

// ReadIdentity reads and decodes the identity frame.
func (r *Reader) ReadIdentity() (Identity, error) {
	payload, err := r.ReadFrame()
	if err != nil {
		return Identity{}, err
	}
	return UnmarshalIdentity(payload)
}
