package uow

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// EventTime is the Fluent protocol's sub-second timestamp: msgpack
// extension type 0, a fixext8 holding big-endian seconds and
// nanoseconds since the epoch.
//
// +-------+----+----+----+----+----+----+----+----+----+
// |     1 |  2 |  3 |  4 |  5 |  6 |  7 |  8 |  9 | 10 |
// +-------+----+----+----+----+----+----+----+----+----+
// |    D7 | 00 | second from epoch |     nanosecond    |
// +-------+----+----+----+----+----+----+----+----+----+
type EventTime time.Time

var _ msgpack.CustomEncoder = (*EventTime)(nil)
var _ msgpack.CustomDecoder = (*EventTime)(nil)

const eventTimeExtType = 0

// EncodeMsgpack implements msgpack.CustomEncoder.
func (t *EventTime) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeExtHeader(eventTimeExtType, 8); err != nil {
		return fmt.Errorf("failed to encode EventTime header: %w", err)
	}

	// no timezone in the wire format; seconds truncated to 32 bits
	utc := time.Time(*t).UTC()
	var payload [8]byte
	binary.BigEndian.PutUint32(payload[:4], uint32(utc.Unix()))
	binary.BigEndian.PutUint32(payload[4:], uint32(utc.Nanosecond()))

	if _, err := enc.Writer().Write(payload[:]); err != nil {
		return fmt.Errorf("failed to encode EventTime payload: %w", err)
	}
	return nil
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (t *EventTime) DecodeMsgpack(dec *msgpack.Decoder) error {
	var raw [10]byte
	if err := dec.ReadFull(raw[:]); err != nil {
		return fmt.Errorf("failed to decode EventTime: %w", err)
	}
	if raw[0] != 0xD7 || raw[1] != eventTimeExtType {
		return fmt.Errorf("failed to decode EventTime: header %X %X, expected D7 00", raw[0], raw[1])
	}
	secs := int64(binary.BigEndian.Uint32(raw[2:6]))
	nsecs := int64(binary.BigEndian.Uint32(raw[6:]))
	*t = EventTime(time.Unix(secs, nsecs).In(time.UTC))
	return nil
}
