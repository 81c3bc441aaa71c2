package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/user-board/internal/board"
	"github.com/msomdec/user-board/internal/service"
	"github.com/msomdec/user-board/internal/view"
	"github.com/starfederation/datastar-go/datastar"
)

// NoticeTooManyRequests is shown when a browser submits faster than the
// submit limiter allows.
const NoticeTooManyRequests = "요청이 너무 많습니다. 잠시 후 다시 시도하세요."

// BoardHandler serves the user board page and its SSE actions. Each request
// gets its own board, closed when the request ends.
type BoardHandler struct {
	remote  board.Syncer
	logger  *slog.Logger
	limiter *service.RateLimiter
}

// BoardHandlerOption configures a BoardHandler.
type BoardHandlerOption func(*BoardHandler)

// WithSubmitLimiter throttles POST /board/users per browser address.
func WithSubmitLimiter(l *service.RateLimiter) BoardHandlerOption {
	return func(h *BoardHandler) { h.limiter = l }
}

// NewBoardHandler creates a new BoardHandler backed by remote.
func NewBoardHandler(remote board.Syncer, logger *slog.Logger, opts ...BoardHandlerOption) *BoardHandler {
	h := &BoardHandler{remote: remote, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BoardHandler) newBoard(opts ...board.Option) *board.Board {
	return board.New(h.remote, append([]board.Option{board.WithLogger(h.logger)}, opts...)...)
}

// HandleHome mounts a board and renders the full page.
// GET /
func (h *BoardHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		view.ErrorPage(http.StatusNotFound, "페이지를 찾을 수 없습니다.").Render(r.Context(), w)
		return
	}

	b := h.newBoard()
	defer b.Close()

	// A failed mount is logged by the board and renders as an empty list.
	_ = b.Mount(r.Context())

	s := b.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.HomePage(s.Users, view.PendingSignals{Name: s.Name, Age: s.Age}).Render(r.Context(), w); err != nil {
		h.logger.Error("render home page", "error", err)
	}
}

// HandleRefresh re-fetches the collection and patches the list.
// POST /board/refresh
func (h *BoardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	b := h.newBoard()
	defer b.Close()

	sse := datastar.NewSSE(w, r)
	b.Subscribe(h.patcher(sse))

	_ = b.Refresh(r.Context())
}

// HandleSubmit creates a user from the browser's pending input.
// POST /board/users
// Signals: {"name":"...","age":"..."}
func (h *BoardHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var signals struct {
		Name string   `json:"name"`
		Age  ageInput `json:"age"`
	}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		h.logger.Info("submit throttled", "remote", r.RemoteAddr)
		h.notify(sse, NoticeTooManyRequests)
		return
	}

	b := h.newBoard(board.WithPending(signals.Name, string(signals.Age)))
	defer b.Close()
	b.Subscribe(h.patcher(sse))

	err := b.Submit(r.Context())

	var verr *board.ValidationError
	if errors.As(err, &verr) {
		h.notify(sse, verr.Notice)
	}
}

// notify shows a blocking alert in the browser.
func (h *BoardHandler) notify(sse *datastar.ServerSentEventGenerator, notice string) {
	quoted, _ := json.Marshal(notice)
	if err := sse.ExecuteScript("alert(" + string(quoted) + ")"); err != nil {
		h.logger.Warn("send notice", "error", err)
	}
}

// patcher pushes every board mutation to the browser: the list element when
// the collection changed, the form signals when pending input changed.
func (h *BoardHandler) patcher(sse *datastar.ServerSentEventGenerator) func(board.State, board.Change) {
	return func(s board.State, c board.Change) {
		if c.Has(board.ChangeUsers) {
			if err := sse.PatchElementTempl(view.UserListFragment(s.Users)); err != nil {
				h.logger.Warn("patch user list", "error", err)
			}
		}
		if c.Has(board.ChangePending) {
			if err := sse.MarshalAndPatchSignals(view.PendingSignals{Name: s.Name, Age: s.Age}); err != nil {
				h.logger.Warn("patch pending signals", "error", err)
			}
		}
	}
}

// ageInput accepts the age signal as either a JSON string or number, since a
// number input may bind either way.
type ageInput string

func (a *ageInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = ageInput(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*a = ageInput(n.String())
		return nil
	}
}
