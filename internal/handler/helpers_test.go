package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/msomdec/user-board/internal/client"
	"github.com/msomdec/user-board/internal/handler"
	"github.com/msomdec/user-board/internal/repository/sqlite"
	"github.com/msomdec/user-board/internal/service"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestUserService(t *testing.T) *service.UserService {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return service.NewUserService(db.Users())
}

// newTestApp serves both the board and the collection endpoint, with the
// board's client pointed back at the same server.
func newTestApp(t *testing.T, users *service.UserService, limiter *service.RateLimiter) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(handler.Wrap(mux, discardLogger))
	t.Cleanup(srv.Close)

	remote, err := client.New(srv.URL+"/user", client.WithLogger(discardLogger))
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	handler.RegisterRoutes(mux,
		handler.NewBoardHandler(remote, discardLogger),
		handler.NewUserHandler(users, limiter),
	)
	return srv
}

// newTestFrontend serves only the board, talking to the given endpoint.
func newTestFrontend(t *testing.T, endpoint string) *httptest.Server {
	t.Helper()
	remote, err := client.New(endpoint, client.WithLogger(discardLogger))
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.NewBoardHandler(remote, discardLogger), nil)

	srv := httptest.NewServer(handler.Wrap(mux, discardLogger))
	t.Cleanup(srv.Close)
	return srv
}

// newTestDeployment mirrors main's wiring with the built-in endpoint: the
// collection endpoint exempts loopback callers and the board throttles
// submits per browser with the same limiter. Browsers are simulated with a
// chosen RemoteAddr against the returned handler.
func newTestDeployment(t *testing.T, users *service.UserService, limiter *service.RateLimiter) http.Handler {
	t.Helper()
	userHandler := handler.NewUserHandler(users, limiter, handler.ExemptLoopback())
	api := http.NewServeMux()
	api.HandleFunc("GET /user", userHandler.HandleList)
	api.HandleFunc("POST /user", userHandler.HandleCreate)
	apiSrv := httptest.NewServer(handler.Wrap(api, discardLogger))
	t.Cleanup(apiSrv.Close)

	remote, err := client.New(apiSrv.URL+"/user", client.WithLogger(discardLogger))
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux,
		handler.NewBoardHandler(remote, discardLogger, handler.WithSubmitLimiter(limiter)),
		nil,
	)
	return handler.Wrap(mux, discardLogger)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
