// Package remote exposes the editor command port over sockets: one JSON
// command per line on a Unix or TCP listener, and the same protocol over
// WebSocket text frames.
package remote

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Options tune both transports.
type Options struct {
	OutQueueSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxLineBytes int
}

// Server accepts stream connections and runs a Session for each.
type Server struct {
	listener net.Listener
	network  string
	handler  *Handler
	opts     Options
	nextID   atomic.Uint64
	log      *zap.Logger
	closeCh  chan struct{}
	once     sync.Once

	mu       sync.Mutex
	sessions map[uint64]*Session
}

// Listen binds network ("unix" or "tcp") at addr. A stale unix socket file
// is removed first.
func Listen(network, addr string, h *Handler, opts Options, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if network == "unix" {
		if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		network:  network,
		handler:  h,
		opts:     opts,
		log:      log,
		closeCh:  make(chan struct{}),
		sessions: make(map[uint64]*Session),
	}, nil
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()
	s.log.Info("remote listening", zap.String("network", s.network), zap.Stringer("addr", s.Addr()))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log.Error("accept failed", zap.Error(err))
			return err
		}
		s.open(ctx, &streamConn{
			conn:        conn,
			r:           bufio.NewReader(conn),
			max:         s.opts.MaxLineBytes,
			readTimeout: s.opts.ReadTimeout,
		})
	}
}

func (s *Server) open(ctx context.Context, conn lineConn) *Session {
	id := s.nextID.Add(1)
	sess := newSession(conn, id, s.handler, s.opts.OutQueueSize, s.opts.WriteTimeout, s.log)
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	sess.log.Info("remote client connected", zap.String("addr", sess.RemoteAddr))
	sess.Start(ctx)
	go func() {
		<-sess.Done()
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		sess.log.Info("remote client disconnected")
	}()
	return sess
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops accepting and closes every session.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		close(s.closeCh)
		s.listener.Close()
		s.mu.Lock()
		for _, sess := range s.sessions {
			sess.Close()
		}
		s.mu.Unlock()
		if s.network == "unix" {
			os.Remove(s.listener.Addr().String())
		}
	})
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

type streamConn struct {
	conn        net.Conn
	r           *bufio.Reader
	max         int
	readTimeout time.Duration
	wmu         sync.Mutex
}

func (c *streamConn) ReadLine() ([]byte, error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return ReadFrame(c.r, c.max)
}

func (c *streamConn) WriteLine(v any, deadline time.Time) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	return WriteFrame(c.conn, v)
}

func (c *streamConn) Close() error { return c.conn.Close() }

func (c *streamConn) RemoteAddr() string {
	if a := c.conn.RemoteAddr(); a != nil && a.String() != "" {
		return a.String()
	}
	return "local"
}
