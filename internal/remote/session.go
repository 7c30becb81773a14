package remote

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// lineConn is a transport that carries one JSON document per message.
type lineConn interface {
	ReadLine() ([]byte, error)
	WriteLine(v any, deadline time.Time) error
	Close() error
	RemoteAddr() string
}

// Session is one remote client. Requests are handled in arrival order by the
// read goroutine; replies are written by the write goroutine.
type Session struct {
	ID       uint64
	conn     lineConn
	handler  *Handler
	OutQueue chan Reply

	RemoteAddr string
	authed     atomic.Bool

	writeTimeout time.Duration
	closeCh      chan struct{}
	closeOnce    sync.Once
	closed       atomic.Bool
	done         chan struct{}

	log *zap.Logger
}

func newSession(conn lineConn, id uint64, h *Handler, outSize int, writeTimeout time.Duration, log *zap.Logger) *Session {
	if outSize <= 0 {
		outSize = 16
	}
	return &Session{
		ID:           id,
		conn:         conn,
		handler:      h,
		OutQueue:     make(chan Reply, outSize),
		RemoteAddr:   conn.RemoteAddr(),
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
		done:         make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
}

// Start launches the reader and writer goroutines. ctx bounds every command
// the session submits.
func (s *Session) Start(ctx context.Context) {
	go s.readLoop(ctx)
	go s.writeLoop()
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed once both goroutines have exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) readLoop(ctx context.Context) {
	defer s.Close()
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read ended", zap.Error(err))
			}
			return
		}
		reply := s.handler.Handle(ctx, s, line)
		select {
		case s.OutQueue <- reply:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer close(s.done)
	defer s.Close()
	for {
		select {
		case reply := <-s.OutQueue:
			var deadline time.Time
			if s.writeTimeout > 0 {
				deadline = time.Now().Add(s.writeTimeout)
			}
			if err := s.conn.WriteLine(reply, deadline); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write failed", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
