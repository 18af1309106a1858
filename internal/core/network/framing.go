package network

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/eventnet/internal/core/observability/log"
)

// LengthPrefixSize is the size of the little-endian length prefix in bytes.
const LengthPrefixSize = 8

// Framing errors. Both are reported as KindProtocol.
var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// FrameReader reads length-prefixed frames from an underlying reader into a
// buffer allocated once at the configured bound.
type FrameReader struct {
	r      io.Reader
	limit  uint64
	header [LengthPrefixSize]byte
	buf    []byte
}

// NewFrameReader reads frames from r, rejecting bodies larger than limit.
func NewFrameReader(r io.Reader, limit uint64) *FrameReader {
	return &FrameReader{
		r:     r,
		limit: limit,
		buf:   make([]byte, int(limit)),
	}
}

// ReadFrame returns the next frame body. The slice aliases the reader's
// buffer and is only valid until the next call.
//
// A stream that ends before any header byte yields io.EOF. A stream that ends
// inside the header or the body yields ErrFrameTruncated, and a declared
// length above the bound yields ErrMessageTooLarge without reading the body.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	n, err := io.ReadFull(fr.r, fr.header[:])
	switch {
	case err == nil:
	case n == 0 && errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, ProtocolError(errors.Wrapf(ErrFrameTruncated, "read %d of %d header bytes", n, LengthPrefixSize))
	default:
		return nil, asIO(errors.Wrap(err, "failed to read length prefix"))
	}

	length := binary.LittleEndian.Uint64(fr.header[:])
	if length > fr.limit {
		return nil, ProtocolError(errors.Wrapf(ErrMessageTooLarge, "%d > %d", length, fr.limit))
	}

	body := fr.buf[:length]
	if _, err = io.ReadFull(fr.r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ProtocolError(errors.Wrapf(ErrFrameTruncated, "body of %d bytes", length))
		}
		return nil, asIO(errors.Wrapf(err, "failed to read body of %d bytes", length))
	}
	return body, nil
}

// WriteFrame writes the length prefix and then the body as two writes.
func WriteFrame(w io.Writer, body []byte) error {
	var header [LengthPrefixSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return asIO(errors.Wrapf(err, "failed to write length prefix %d", len(body)))
	}
	if _, err := w.Write(body); err != nil {
		return asIO(errors.Wrap(err, "failed to write body"))
	}
	return nil
}

// Framer runs the framing protocol over any byte stream. Providers delegate
// their RecvLoop and SendLoop to it.
type Framer struct {
	codec   Codec
	logger  log.Log
	metrics *Metrics
}

// NewFramer creates a Framer encoding packets with codec.
func NewFramer(codec Codec, logger log.Log, metrics *Metrics) *Framer {
	return &Framer{
		codec:   codec,
		logger:  log.OrNop(logger),
		metrics: metrics,
	}
}

// With returns a copy whose logger carries fields.
func (f *Framer) With(fields ...log.Field) *Framer {
	clone := *f
	clone.logger = f.logger.With(fields...)
	return &clone
}

// RecvLoop decodes frames from r and pushes each packet into sink until the
// peer disconnects, a fatal error occurs, or ctx is done. After a decode
// failure the stream position is lost, so the loop stops.
func (f *Framer) RecvLoop(ctx context.Context, r io.Reader, sink chan<- NetworkPacket, settings Settings) error {
	stop := interruptOnDone(ctx, r, setReadDeadline)
	defer stop()

	reader := NewFrameReader(r, settings.MessageLimit())
	for {
		body, err := reader.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				f.logger.Debug("receive loop cancelled")
				return nil
			}
			if errors.Is(err, io.EOF) {
				f.logger.Info("peer disconnected")
				return nil
			}
			f.logger.Error("receive loop terminated", log.Error(err))
			return err
		}
		f.logger.Debug("frame received", log.Int("length", len(body)))

		var packet NetworkPacket
		if err = f.codec.Deserialize(body, &packet); err != nil {
			err = asSerialization(err)
			f.logger.Error("failed to decode network packet", log.Int("length", len(body)), log.Error(err))
			return err
		}
		f.metrics.FrameReceived(len(body))

		select {
		case sink <- packet:
		case <-ctx.Done():
			f.logger.Debug("receive loop cancelled")
			return nil
		}
	}
}

// SendLoop encodes packets from source and writes them to w until source is
// closed, a write fails, or ctx is done. Packets that cannot be encoded or
// exceed the message bound are skipped.
func (f *Framer) SendLoop(ctx context.Context, w io.Writer, source <-chan NetworkPacket, settings Settings) error {
	stop := interruptOnDone(ctx, w, setWriteDeadline)
	defer stop()

	limit := settings.MessageLimit()
	for {
		var (
			packet NetworkPacket
			ok     bool
		)
		select {
		case <-ctx.Done():
			f.logger.Debug("send loop cancelled")
			return nil
		case packet, ok = <-source:
			if !ok {
				f.logger.Debug("send source closed")
				return nil
			}
		}

		encoded, err := f.codec.Serialize(packet)
		if err != nil {
			f.logger.Error("could not encode packet", log.String("kind", packet.Kind), log.Error(asSerialization(err)))
			f.metrics.Dropped(DropEncode)
			continue
		}
		if uint64(len(encoded)) > limit {
			f.logger.Error("packet exceeds max message size",
				log.String("kind", packet.Kind),
				log.Int("length", len(encoded)),
				log.Uint64("limit", limit),
			)
			f.metrics.Dropped(DropOversize)
			continue
		}

		f.logger.Debug("sending frame", log.String("kind", packet.Kind), log.Int("length", len(encoded)))
		if err = WriteFrame(w, encoded); err != nil {
			if ctx.Err() != nil {
				f.logger.Debug("send loop cancelled")
				return nil
			}
			f.logger.Error("could not send packet", log.String("kind", packet.Kind), log.Error(err))
			return err
		}
		f.metrics.FrameSent(len(encoded))
	}
}

func asSerialization(err error) error {
	if KindOf(err) == KindUnknown {
		return SerializationError(err)
	}
	return err
}

// asIO keeps the kind a stream already attached to err.
func asIO(err error) error {
	if KindOf(err) == KindUnknown {
		return IOError(err)
	}
	return err
}

// aLongTimeAgo is a non-zero deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

func setReadDeadline(stream any) bool {
	d, ok := stream.(interface{ SetReadDeadline(time.Time) error })
	if ok {
		_ = d.SetReadDeadline(aLongTimeAgo)
	}
	return ok
}

func setWriteDeadline(stream any) bool {
	d, ok := stream.(interface{ SetWriteDeadline(time.Time) error })
	if ok {
		_ = d.SetWriteDeadline(aLongTimeAgo)
	}
	return ok
}

// interruptOnDone expires the stream's deadline once ctx is done so a blocked
// read or write returns. Streams without deadlines are left alone.
func interruptOnDone(ctx context.Context, stream any, expire func(any) bool) (stop func() bool) {
	return context.AfterFunc(ctx, func() { expire(stream) })
}
