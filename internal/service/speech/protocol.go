package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Binary websocket framing for the synthesis endpoint. Every frame
// opens with a 4-byte header: version+size, type+flags,
// serialization+compression, reserved.

const protocolVersion = 0b0001

type messageType uint8

const (
	typeFullClientRequest  messageType = 0b0001
	typeFullServerResponse messageType = 0b1001
	typeAudioOnlyResponse  messageType = 0b1011
	typeErrorMessage       messageType = 0b1111
)

type messageFlags uint8

const (
	flagsNone            messageFlags = 0b0000
	flagsPositiveSeq     messageFlags = 0b0001
	flagsLastNoSeq       messageFlags = 0b0010
	flagsNegativeSeq     messageFlags = 0b0011
	flagsWithEvent       messageFlags = 0b0100
	eventSessionFinished int32        = 152
)

type serialization uint8

const (
	serializationNone serialization = 0b0000
	serializationJSON serialization = 0b0001
)

type compression uint8

const (
	compressionNone compression = 0b0000
	compressionGzip compression = 0b0001
)

type frameHeader struct {
	Version       uint8
	HeaderSize    uint8
	Type          messageType
	Flags         messageFlags
	Serialization serialization
	Compression   compression
}

type frame struct {
	Header    frameHeader
	Sequence  int32
	Event     int32
	SessionID string
	ErrorCode uint32
	Payload   []byte
}

func (h frameHeader) encode() []byte {
	return []byte{
		h.Version<<4 | h.HeaderSize,
		uint8(h.Type)<<4 | uint8(h.Flags),
		uint8(h.Serialization)<<4 | uint8(h.Compression),
		0x00,
	}
}

func decodeFrameHeader(data []byte) (frameHeader, error) {
	if len(data) < 4 {
		return frameHeader{}, fmt.Errorf("header too short: %d bytes", len(data))
	}
	h := frameHeader{
		Version:       data[0] >> 4,
		HeaderSize:    data[0] & 0x0F,
		Type:          messageType(data[1] >> 4),
		Flags:         messageFlags(data[1] & 0x0F),
		Serialization: serialization(data[2] >> 4),
		Compression:   compression(data[2] & 0x0F),
	}
	if h.Version != protocolVersion {
		return frameHeader{}, fmt.Errorf("unsupported protocol version %d", h.Version)
	}
	return h, nil
}

// newRequestFrame wraps a JSON payload into the single full-client
// request the unidirectional synthesis flow needs.
func newRequestFrame(payload []byte) *frame {
	return &frame{
		Header: frameHeader{
			Version:       protocolVersion,
			HeaderSize:    0b0001,
			Type:          typeFullClientRequest,
			Flags:         flagsNone,
			Serialization: serializationJSON,
			Compression:   compressionNone,
		},
		Payload: payload,
	}
}

func encodeFrame(f *frame) []byte {
	buf := bytes.NewBuffer(f.Header.encode())

	if f.Header.Flags&0b0011 == flagsPositiveSeq || f.Header.Flags&0b0011 == flagsNegativeSeq {
		binary.Write(buf, binary.BigEndian, uint32(f.Sequence))
	}
	if f.Header.Flags&flagsWithEvent != 0 {
		binary.Write(buf, binary.BigEndian, uint32(f.Event))
		binary.Write(buf, binary.BigEndian, uint32(len(f.SessionID)))
		buf.WriteString(f.SessionID)
	}

	binary.Write(buf, binary.BigEndian, uint32(len(f.Payload)))
	buf.Write(f.Payload)
	return buf.Bytes()
}

func decodeFrame(r io.Reader) (*frame, error) {
	headerBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header, err := decodeFrameHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	f := &frame{Header: header}

	if extra := int(header.HeaderSize)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
	}

	if header.Flags&0b0011 == flagsPositiveSeq || header.Flags&0b0011 == flagsNegativeSeq {
		var seq uint32
		if err := binary.Read(r, binary.BigEndian, &seq); err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
		f.Sequence = int32(seq)
	}

	if header.Flags&flagsWithEvent != 0 {
		var event uint32
		if err := binary.Read(r, binary.BigEndian, &event); err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		f.Event = int32(event)

		var size uint32
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, fmt.Errorf("read session id size: %w", err)
		}
		if size > 0 {
			id := make([]byte, size)
			if _, err := io.ReadFull(r, id); err != nil {
				return nil, fmt.Errorf("read session id: %w", err)
			}
			f.SessionID = string(id)
		}
	}

	if header.Type == typeErrorMessage {
		if err := binary.Read(r, binary.BigEndian, &f.ErrorCode); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	var payloadSize uint32
	if err := binary.Read(r, binary.BigEndian, &payloadSize); err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	if payloadSize > 0 {
		f.Payload = make([]byte, payloadSize)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("read payload (%d bytes): %w", payloadSize, err)
		}
	}
	return f, nil
}

// isLast reports end-of-stream by sequence flags or session event.
func (f *frame) isLast() bool {
	if f.Header.Flags&0b0011 == flagsLastNoSeq || f.Header.Flags&0b0011 == flagsNegativeSeq {
		return true
	}
	return f.Header.Flags&flagsWithEvent != 0 && f.Event == eventSessionFinished
}

func decompressPayload(data []byte, method compression) ([]byte, error) {
	switch method {
	case compressionNone:
		return data, nil
	case compressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer reader.Close()
		out, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip read: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported compression method %d", method)
}
