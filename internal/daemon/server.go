// Package daemon provides the daemon's managed components: the RPC
// listener that speaks the framed wire protocol, and the metrics endpoint.
package daemon

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aresch/deluge/internal/component"
	"github.com/aresch/deluge/internal/logging"
	"github.com/aresch/deluge/internal/wire"
)

// RPCServer accepts TCP connections and runs one wire.Protocol per
// connection. It implements the component hooks so the registry can manage
// its lifecycle; while Started, the update hook periodically reports
// connection statistics.
type RPCServer struct {
	component.BaseHooks

	addr    string
	logger  *logging.Logger
	handler wire.MessageHandler

	framesReceived prometheus.Counter

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*rpcConn
	wg       sync.WaitGroup
}

type rpcConn struct {
	id    string
	nc    net.Conn
	proto *wire.Protocol
}

// RPCServerOption configures an RPCServer.
type RPCServerOption func(*RPCServer)

// WithHandler sets the handler invoked for every decoded inbound message.
// The handler receives only the decoded payload, not the connection id.
// Without a handler, messages are only logged.
func WithHandler(h wire.MessageHandler) RPCServerOption {
	return func(s *RPCServer) {
		s.handler = h
	}
}

// WithFrameCounter attaches a counter incremented per decoded frame.
func WithFrameCounter(c prometheus.Counter) RPCServerOption {
	return func(s *RPCServer) {
		s.framesReceived = c
	}
}

// NewRPCServer creates an RPC listener component for addr. The listener is
// not bound until the component is started.
func NewRPCServer(addr string, opts ...RPCServerOption) *RPCServer {
	s := &RPCServer{
		addr:   addr,
		logger: logging.New("daemon.rpcserver"),
		conns:  make(map[string]*rpcConn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the bound listener address, or nil when not started.
func (s *RPCServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and begins accepting connections.
func (s *RPCServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("listening on %s", ln.Addr())
	return nil
}

// Stop closes the listener and every open connection, then waits for the
// per-connection readers to drain.
func (s *RPCServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}

	s.mu.Lock()
	conns := make([]*rpcConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.nc.Close()
	}
	s.wg.Wait()
	return nil
}

// Update reports connection statistics at debug level.
func (s *RPCServer) Update(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.conns)
	s.mu.Unlock()
	s.logger.Debug("connections open: %d", n)
	return nil
}

func (s *RPCServer) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			// Listener closed during stop.
			return
		}

		c := &rpcConn{
			id: uuid.NewString(),
			nc: nc,
		}
		c.proto = wire.NewProtocol(wire.RencodeCodec{}, wire.ZlibCompressor{},
			wire.WithMessageHandler(func(msg interface{}) {
				s.messageReceived(c, msg)
			}))
		c.proto.ConnectionMade(nc)

		s.mu.Lock()
		if s.listener == nil {
			// Stop won the race, refuse the connection.
			s.mu.Unlock()
			nc.Close()
			return
		}
		s.conns[c.id] = c
		s.mu.Unlock()

		s.logger.Infow("connection accepted",
			"conn", c.id, "remote", nc.RemoteAddr())

		s.wg.Add(1)
		go s.readLoop(c)
	}
}

func (s *RPCServer) readLoop(c *rpcConn) {
	defer s.wg.Done()
	defer s.dropConn(c)

	buf := make([]byte, 32*1024)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			if derr := c.proto.DataReceived(buf[:n]); derr != nil {
				s.logger.Warnw("dropping connection on bad frame",
					"conn", c.id, "error", derr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *RPCServer) dropConn(c *rpcConn) {
	c.nc.Close()
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.logger.Debugw("connection closed",
		"conn", c.id,
		"bytes_received", c.proto.BytesReceived(),
		"bytes_sent", c.proto.BytesSent(),
	)
}

func (s *RPCServer) messageReceived(c *rpcConn, msg interface{}) {
	if s.framesReceived != nil {
		s.framesReceived.Inc()
	}
	if s.handler != nil {
		s.handler(msg)
		return
	}
	s.logger.Debugw("message received", "conn", c.id, "message", msg)
}
