package codec

import (
	"fmt"
	"time"
	"unicode/utf8"

	"chat-relay/domain"

	"google.golang.org/protobuf/encoding/protowire"
)

// ChatRecord payload fields.
const (
	fieldSender    protowire.Number = 1
	fieldContent   protowire.Number = 2
	fieldTimestamp protowire.Number = 3
	fieldKind      protowire.Number = 4
)

// MarshalRecord encodes a record payload. Zero values are omitted.
func MarshalRecord(r domain.ChatRecord) []byte {
	var b []byte
	if r.Sender != "" {
		b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
		b = protowire.AppendString(b, r.Sender)
	}
	if r.Content != "" {
		b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
		b = protowire.AppendString(b, r.Content)
	}
	if !r.Timestamp.IsZero() {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Timestamp.UnixMilli()))
	}
	if r.Kind != domain.KindText {
		b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Kind))
	}
	return b
}

// RecordFrame encodes a record as a ready to write frame.
func RecordFrame(r domain.ChatRecord) []byte {
	payload := MarshalRecord(r)
	if len(payload) == 0 {
		// An empty Text record would produce an empty frame.
		payload = protowire.AppendTag(payload, fieldContent, protowire.BytesType)
		payload = protowire.AppendString(payload, "")
	}
	return Frame(payload)
}

// UnmarshalRecord decodes a record payload. Unknown fields are skipped.
func UnmarshalRecord(b []byte) (domain.ChatRecord, error) {
	var r domain.ChatRecord
	var err error
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.ChatRecord{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldSender && typ == protowire.BytesType:
			var v string
			if v, n, err = consumeText(num, b); err != nil {
				return domain.ChatRecord{}, err
			}
			r.Sender = v
		case num == fieldContent && typ == protowire.BytesType:
			var v string
			if v, n, err = consumeText(num, b); err != nil {
				return domain.ChatRecord{}, err
			}
			r.Content = v
		case num == fieldTimestamp && typ == protowire.VarintType:
			var ms uint64
			ms, n = protowire.ConsumeVarint(b)
			if n >= 0 && ms != 0 {
				r.Timestamp = time.UnixMilli(int64(ms))
			}
		case num == fieldKind && typ == protowire.VarintType:
			var k uint64
			k, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				if k > uint64(domain.KindInfo) {
					return domain.ChatRecord{}, fmt.Errorf("%w: unknown kind %d", ErrMalformedFrame, k)
				}
				r.Kind = domain.Kind(k)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return domain.ChatRecord{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]
	}
	return r, nil
}

// ReadRecord reads and decodes the next record frame.
func (r *Reader) ReadRecord() (domain.ChatRecord, error) {
	payload, err := r.ReadFrame()
	if err != nil {
		return domain.ChatRecord{}, err
	}
	return UnmarshalRecord(payload)
}

// consumeText reads a length-delimited UTF-8 field.
// A negative n without error is left to the caller as a protowire parse code.
func consumeText(num protowire.Number, b []byte) (string, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", n, nil
	}
	if !utf8.Valid(v) {
		return "", n, fmt.Errorf("%w: field %d is not valid UTF-8", ErrMalformedFrame, num)
	}
	return string(v), n, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
}
