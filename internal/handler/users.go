package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/msomdec/user-board/internal/domain"
	"github.com/msomdec/user-board/internal/service"
)

// UserHandler serves the collection endpoint.
type UserHandler struct {
	users          *service.UserService
	limiter        *service.RateLimiter
	exemptLoopback bool
}

// UserHandlerOption configures a UserHandler.
type UserHandlerOption func(*UserHandler)

// ExemptLoopback skips rate limiting for loopback callers. Use it when the
// board in this process calls the endpoint over loopback and is already
// limited per browser at POST /board/users.
func ExemptLoopback() UserHandlerOption {
	return func(h *UserHandler) { h.exemptLoopback = true }
}

// NewUserHandler creates a new UserHandler. A nil limiter disables rate limiting.
func NewUserHandler(users *service.UserService, limiter *service.RateLimiter, opts ...UserHandlerOption) *UserHandler {
	h := &UserHandler{users: users, limiter: limiter}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *UserHandler) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	key := clientKey(r)
	if h.exemptLoopback && isLoopback(key) {
		return true
	}
	return h.limiter.Allow(key)
}

// HandleList returns the whole collection.
// GET /user
// Response: [{"id":1,"name":"...","age":30}, ...]
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		slog.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list users.")
		return
	}
	writeJSON(w, http.StatusOK, toUserDTOs(users))
}

// HandleGetByName returns the first user with the given name.
// GET /user/{name}
func (h *UserHandler) HandleGetByName(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByName(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found.")
			return
		}
		slog.Error("get user by name", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get user.")
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleCreate adds a user.
// POST /user
// Request:  {"name":"...","age":30}
// Response: 201 {"id":1,"name":"...","age":30}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.allow(r) {
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
		return
	}

	var req struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON input.")
		return
	}

	user, err := h.users.Create(r.Context(), domain.NewUser{Name: req.Name, Age: req.Age})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user.")
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// clientKey identifies the caller for rate limiting by its direct peer
// address. Forwarding headers are client-controlled and ignored.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
