// Package rpcwire implements the binary frame format and error taxonomy
// shared by the sync agent and server (SPEC_FULL.md §6). Transport is plain
// HTTP/1.1 with chunked bodies; this package only concerns itself with what
// flows through those bodies.
package rpcwire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// FrameKind tags a frame's payload. Only used on the upload stream; download
// and list streams are unframed.
type FrameKind byte

const (
	FrameInfo  FrameKind = 0x01
	FrameChunk FrameKind = 0x02
)

// maxFrameLength bounds a single frame's payload, generous enough for any
// realistic chunk size while guarding against a corrupt or hostile length
// prefix causing an unbounded allocation.
const maxFrameLength = 64 << 20 // 64 MiB

// UploadInfo is FrameInfo's JSON payload: the metadata that must precede an
// upload's chunk frames.
type UploadInfo struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// WriteInfoFrame writes a single FrameInfo frame carrying info as JSON.
func WriteInfoFrame(w io.Writer, info UploadInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("rpcwire: encoding info frame: %w", err)
	}

	return writeFrame(w, FrameInfo, payload)
}

// WriteChunkFrame writes a single FrameChunk frame carrying payload verbatim.
func WriteChunkFrame(w io.Writer, payload []byte) error {
	return writeFrame(w, FrameChunk, payload)
}

func writeFrame(w io.Writer, kind FrameKind, payload []byte) error {
	header := make([]byte, 5)
	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("rpcwire: writing frame header: %w", err)
	}

	if len(payload) == 0 {
		return nil
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("rpcwire: writing frame payload: %w", err)
	}

	return nil
}

// Frame is a single decoded frame as returned by a FrameReader.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// FrameReader decodes a sequence of frames from an underlying stream,
// enforcing that at most one FrameInfo appears and that it comes first
// (spec: "it must be first (InvalidArgument otherwise)").
type FrameReader struct {
	r      io.Reader
	seenAny  bool
	seenInfo bool
}

// NewFrameReader wraps r for frame-by-frame decoding.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next reads and returns the next frame, or io.EOF when the stream is
// exhausted cleanly between frames.
func (fr *FrameReader) Next() (Frame, error) {
	header := make([]byte, 5)

	if _, err := io.ReadFull(fr.r, header); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}

		return Frame{}, NewError(KindInvalidArgument, "reading frame header: %v", err)
	}

	kind := FrameKind(header[0])
	length := binary.BigEndian.Uint32(header[1:])

	if length > maxFrameLength {
		return Frame{}, NewError(KindInvalidArgument, "frame length %d exceeds maximum", length)
	}

	switch kind {
	case FrameInfo:
		if fr.seenInfo {
			return Frame{}, NewError(KindInvalidArgument, "duplicate info frame")
		}

		if fr.seenAny {
			return Frame{}, NewError(KindInvalidArgument, "info frame must be first")
		}

		fr.seenInfo = true
	case FrameChunk:
		if !fr.seenInfo {
			return Frame{}, NewError(KindInvalidArgument, "chunk frame before info frame")
		}
	default:
		return Frame{}, NewError(KindInvalidArgument, "unknown frame kind %#x", byte(kind))
	}

	fr.seenAny = true

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return Frame{}, NewError(KindInvalidArgument, "reading frame payload: %v", err)
		}
	}

	return Frame{Kind: kind, Payload: payload}, nil
}

// ChunkReader adapts the FrameChunk frames following the info frame into a
// plain io.Reader, so the server can stream them directly into a blob store
// Put call without buffering the whole upload.
type ChunkReader struct {
	fr  *FrameReader
	buf []byte
}

// Chunks returns an io.Reader over fr's remaining FrameChunk payloads.
// ReadUploadInfo must have been called first.
func (fr *FrameReader) Chunks() *ChunkReader {
	return &ChunkReader{fr: fr}
}

func (c *ChunkReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		frame, err := c.fr.Next()
		if err == io.EOF {
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}

		if frame.Kind != FrameChunk {
			return 0, NewError(KindInvalidArgument, "expected chunk frame, got kind %#x", byte(frame.Kind))
		}

		c.buf = frame.Payload
	}

	n := copy(p, c.buf)
	c.buf = c.buf[n:]

	return n, nil
}

// ReadUploadInfo reads the (mandatory, first) FrameInfo frame and decodes it.
func (fr *FrameReader) ReadUploadInfo() (UploadInfo, error) {
	frame, err := fr.Next()
	if err != nil {
		return UploadInfo{}, err
	}

	if frame.Kind != FrameInfo {
		return UploadInfo{}, NewError(KindInvalidArgument, "expected info frame first")
	}

	var info UploadInfo
	if err := json.Unmarshal(frame.Payload, &info); err != nil {
		return UploadInfo{}, NewError(KindInvalidArgument, "decoding info frame: %v", err)
	}

	return info, nil
}
