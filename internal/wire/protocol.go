// Package wire implements the length-prefixed RPC framing used to exchange
// serialized objects over a byte stream.
//
// Each frame carries a 5-byte big-endian header, one byte protocol version
// and four bytes body length, followed by the compressed, codec-serialized
// payload. The receive side is a resumable parser: bytes arrive in
// arbitrary chunks and complete frames are delivered in order.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/aresch/deluge/internal/logging"
)

const (
	// ProtocolVersion is the sole recognized frame version. Revised in
	// lockstep with wire changes.
	ProtocolVersion byte = 1

	// HeaderSize is the size of the frame header: version byte plus
	// big-endian uint32 body length.
	HeaderSize = 5
)

// InvalidVersionError reports a frame header carrying an unsupported
// protocol version.
type InvalidVersionError struct {
	Version byte
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("received invalid protocol version: %d, expected %d",
		e.Version, ProtocolVersion)
}

// MessageHandler receives each decoded payload, in arrival order.
type MessageHandler func(msg interface{})

// Protocol frames outgoing messages and reassembles incoming ones. It is
// driven by a host transport: the transport hands inbound chunks to
// DataReceived and supplies an io.Writer for outbound frames via
// ConnectionMade.
type Protocol struct {
	codec      Codec
	compressor Compressor
	onMessage  MessageHandler
	logger     *logging.Logger

	mu            sync.Mutex
	transport     io.Writer
	buf           []byte
	bytesSent     uint64
	bytesReceived uint64
}

// ProtocolOption configures a Protocol.
type ProtocolOption func(*Protocol)

// WithMessageHandler sets the handler invoked for each complete message.
func WithMessageHandler(h MessageHandler) ProtocolOption {
	return func(p *Protocol) {
		p.onMessage = h
	}
}

// NewProtocol creates a framer over the given codec and compressor.
func NewProtocol(codec Codec, compressor Compressor, opts ...ProtocolOption) *Protocol {
	p := &Protocol{
		codec:      codec,
		compressor: compressor,
		logger:     logging.New("wire.protocol"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConnectionMade attaches the transport writer used by Send.
func (p *Protocol) ConnectionMade(w io.Writer) {
	p.mu.Lock()
	p.transport = w
	p.mu.Unlock()
}

// Send serializes msg, compresses it, and writes a single frame to the
// transport in one write.
func (p *Protocol) Send(msg interface{}) error {
	serialized, err := p.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	body, err := p.compressor.Compress(serialized)
	if err != nil {
		return fmt.Errorf("compress message: %w", err)
	}

	frame := make([]byte, HeaderSize+len(body))
	frame[0] = ProtocolVersion
	binary.BigEndian.PutUint32(frame[1:HeaderSize], uint32(len(body)))
	copy(frame[HeaderSize:], body)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport == nil {
		return fmt.Errorf("no transport attached")
	}
	if _, err := p.transport.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	p.bytesSent += uint64(len(frame))
	return nil
}

// TransferMessage sends msg. Compatibility alias for Send.
func (p *Protocol) TransferMessage(msg interface{}) error {
	return p.Send(msg)
}

// DataReceived accumulates an inbound chunk and delivers every complete
// frame it can parse, in order. Partial frames are retained until more
// data arrives. A version mismatch resets the buffer and is logged, not
// returned: the remainder of a desynchronized stream is discarded along
// with the offending frame.
func (p *Protocol) DataReceived(data []byte) error {
	p.mu.Lock()
	p.buf = append(p.buf, data...)
	p.bytesReceived += uint64(len(data))

	for len(p.buf) >= HeaderSize {
		version := p.buf[0]
		if version != ProtocolVersion {
			p.logger.Warn("%v", &InvalidVersionError{Version: version})
			p.buf = nil
			break
		}

		size := int(binary.BigEndian.Uint32(p.buf[1:HeaderSize]))
		if len(p.buf)-HeaderSize < size {
			// Not a full frame yet, wait for more data.
			break
		}

		body := p.buf[HeaderSize : HeaderSize+size]
		p.buf = append([]byte(nil), p.buf[HeaderSize+size:]...)

		serialized, err := p.compressor.Decompress(body)
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("decompress frame: %w", err)
		}
		msg, err := p.codec.Decode(serialized)
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("decode frame: %w", err)
		}

		handler := p.onMessage
		p.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
		p.mu.Lock()
	}

	p.mu.Unlock()
	return nil
}

// BytesSent returns the number of bytes written to the transport.
func (p *Protocol) BytesSent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytesSent
}

// BytesReceived returns the number of bytes handed to DataReceived.
func (p *Protocol) BytesReceived() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytesReceived
}
