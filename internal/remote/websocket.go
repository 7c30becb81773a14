package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSBridge serves the line protocol over WebSocket: each text frame is one
// request and each reply is one text frame.
type WSBridge struct {
	server   *Server
	upgrader websocket.Upgrader
	http     *http.Server
	listener net.Listener
	log      *zap.Logger

	ctxMu sync.Mutex
	ctx   context.Context
}

// NewWSBridge listens on addr and registers sessions with srv so they share
// its handler, ids and shutdown.
func NewWSBridge(addr string, srv *Server, log *zap.Logger) (*WSBridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	b := &WSBridge{
		server: srv,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// the bridge binds to a local address; browsers on any origin may drive it
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		listener: ln,
		log:      log.With(zap.String("transport", "websocket")),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	b.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return b, nil
}

func (b *WSBridge) Addr() net.Addr { return b.listener.Addr() }

// Serve runs the HTTP server until ctx is cancelled.
func (b *WSBridge) Serve(ctx context.Context) error {
	b.ctxMu.Lock()
	b.ctx = ctx
	b.ctxMu.Unlock()
	errCh := make(chan error, 1)
	go func() { errCh <- b.http.Serve(b.listener) }()
	b.log.Info("websocket bridge listening", zap.Stringer("addr", b.Addr()))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (b *WSBridge) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if max := b.server.opts.MaxLineBytes; max > 0 {
		conn.SetReadLimit(int64(max))
	}
	// sessions outlive the upgrade request
	b.server.open(b.sessionContext(), &wsConn{
		conn:        conn,
		readTimeout: b.server.opts.ReadTimeout,
	})
}

func (b *WSBridge) sessionContext() context.Context {
	b.ctxMu.Lock()
	defer b.ctxMu.Unlock()
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	wmu         sync.Mutex
}

func (c *wsConn) ReadLine() ([]byte, error) {
	for {
		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteLine(v any, deadline time.Time) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error       { return c.conn.Close() }
func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
