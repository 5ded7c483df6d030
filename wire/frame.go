// Package wire implements rankmesh's frame codec: a fixed-size prefix packet carrying
// a header plus inline payload, followed by a raw byte-stream remainder for payloads
// that don't fit inline.
//
// Fixed-header-then-body discipline: read header, derive length, read exactly that
// many more bytes, in a single stream-mode framing since rankmesh has no
// boundary-preserving transport.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	// PacketSize is the fixed framing unit P
	PacketSize = 512

	// HeaderSize is sizeof(header): a uint32 size field plus an int32 tag field.
	HeaderSize = 8

	// InlineCapacity is the payload capacity carried inline in the prefix packet.
	InlineCapacity = PacketSize - HeaderSize
)

// Reserved tags, All negative; user tags are non-negative, and the
// in-band wildcard/any value is 0 (TagAny).
const (
	TagAny     int32 = 0
	TagClose   int32 = -1
	TagRequest int32 = -2
	TagGroup   int32 = -3
)

// ErrShortFrame is returned by Decode when the stream ends mid-frame; callers treat
// this the same as any other transport failure — fatal for the channel.
var ErrShortFrame = errors.New("wire: short read while decoding a frame")

// Header is the two-field frame header
type Header struct {
	Size uint32
	Tag  int32
}

// Frame is a fully decoded message: header plus owned payload buffer.
type Frame struct {
	Header  Header
	Payload []byte
}

// Encode writes one frame for (tag, payload) to w: a zero-filled PacketSize prefix
// carrying the header and up to InlineCapacity bytes of payload, followed by any
// remainder on the same stream. The prefix packet's layout never changes; compress
// only affects how a non-empty remainder is written, as a single lz4 frame instead
// of raw bytes. The peer's Decode must be called with the same compress value.
func Encode(w io.Writer, tag int32, payload []byte, compress bool) error {
	var prefix [PacketSize]byte
	binary.LittleEndian.PutUint32(prefix[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(prefix[4:8], uint32(tag))

	n := copy(prefix[HeaderSize:], payload)
	if _, err := w.Write(prefix[:]); err != nil {
		return errors.Wrap(err, "wire: write prefix packet")
	}
	if n < len(payload) {
		remainder := payload[n:]
		if compress {
			return errors.Wrap(CompressRemainder(w, remainder), "wire: write frame remainder")
		}
		if _, err := w.Write(remainder); err != nil {
			return errors.Wrap(err, "wire: write frame remainder")
		}
	}
	return nil
}

// Decode reads exactly one frame from r: a PacketSize prefix, then the remainder if
// the header's size exceeds InlineCapacity. compress must match the value the
// sender's Encode used. Any short read is reported as ErrShortFrame (callers fold
// this into peer-closure handling).
func Decode(r io.Reader, compress bool) (Frame, error) {
	var prefix [PacketSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, errors.Wrapf(ErrShortFrame, "prefix: %v", err)
	}

	size := binary.LittleEndian.Uint32(prefix[0:4])
	tag := int32(binary.LittleEndian.Uint32(prefix[4:8]))

	payload := make([]byte, size)
	inline := copy(payload, prefix[HeaderSize:])
	if int(size) > inline {
		remainder := payload[inline:]
		var err error
		if compress {
			err = DecompressRemainder(r, remainder)
		} else {
			_, err = io.ReadFull(r, remainder)
		}
		if err != nil {
			return Frame{}, errors.Wrapf(ErrShortFrame, "remainder: %v", err)
		}
	}
	return Frame{Header: Header{Size: size, Tag: tag}, Payload: payload}, nil
}

// EncodeRequest builds the REQUEST probe payload: a nested header carrying the
// (tag, size) shape of the receive the sender is now blocked on.
func EncodeRequest(tag int32, size uint32) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], size)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(tag))
	return buf
}

// DecodeRequest parses a REQUEST probe payload back into (tag, size).
func DecodeRequest(payload []byte) (tag int32, size uint32, err error) {
	if len(payload) < HeaderSize {
		return 0, 0, errors.Errorf("wire: short REQUEST payload (%d bytes)", len(payload))
	}
	size = binary.LittleEndian.Uint32(payload[0:4])
	tag = int32(binary.LittleEndian.Uint32(payload[4:8]))
	return tag, size, nil
}
