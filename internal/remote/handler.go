package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stagehand/editor/internal/editor"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// KindUnauthorized is returned for commands sent before a successful auth.
const KindUnauthorized editor.ErrorKind = "unauthorized"

// Submitter runs a command on the frame thread. *editor.Editor implements it.
type Submitter interface {
	Submit(ctx context.Context, cmd editor.Command) (editor.Response, error)
}

// Reply is one response line. ID echoes the request id.
type Reply struct {
	ID string `json:"id"`
	editor.Response
}

type envelope struct {
	ID       string `json:"id"`
	Action   string `json:"action"`
	Password string `json:"password"`
}

// Handler turns request lines into editor commands. It is shared by every
// session of every transport.
type Handler struct {
	editor       Submitter
	passwordHash []byte
	log          *zap.Logger
}

// NewHandler creates a handler. An empty passwordHash disables auth.
func NewHandler(ed Submitter, passwordHash string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{editor: ed, log: log}
	if passwordHash != "" {
		h.passwordHash = []byte(passwordHash)
	}
	return h
}

// AuthRequired reports whether sessions must authenticate first.
func (h *Handler) AuthRequired() bool { return len(h.passwordHash) > 0 }

// Handle processes one request line for sess.
func (h *Handler) Handle(ctx context.Context, sess *Session, line []byte) Reply {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Reply{ID: uuid.NewString(), Response: errorResponse(editor.KindInvalidCommand, fmt.Sprintf("malformed request: %v", err))}
	}
	id := env.ID
	if id == "" {
		id = uuid.NewString()
	}

	if env.Action == "auth" {
		if !h.AuthRequired() {
			sess.authed.Store(true)
			return Reply{ID: id, Response: editor.Response{OK: true}}
		}
		if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(env.Password)); err != nil {
			sess.log.Warn("remote auth failed")
			return Reply{ID: id, Response: errorResponse(KindUnauthorized, "wrong password")}
		}
		sess.authed.Store(true)
		sess.log.Info("remote session authenticated")
		return Reply{ID: id, Response: editor.Response{OK: true}}
	}
	if h.AuthRequired() && !sess.authed.Load() {
		return Reply{ID: id, Response: errorResponse(KindUnauthorized, "authenticate first")}
	}

	cmd, err := editor.DecodeCommand(line)
	if err != nil {
		return Reply{ID: id, Response: errorResponse(editor.Classify(err), err.Error())}
	}
	resp, err := h.editor.Submit(ctx, cmd)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Reply{ID: id, Response: errorResponse(editor.KindInternal, "editor is shutting down")}
		}
		return Reply{ID: id, Response: errorResponse(editor.KindInternal, err.Error())}
	}
	sess.log.Debug("command", zap.String("id", id), zap.String("action", cmd.Action()), zap.Bool("ok", resp.OK))
	return Reply{ID: id, Response: resp}
}

func errorResponse(kind editor.ErrorKind, msg string) editor.Response {
	return editor.Response{Error: &editor.ErrorInfo{Kind: kind, Message: msg}}
}

// HashPassword produces the value for remote.password_hash.
func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
