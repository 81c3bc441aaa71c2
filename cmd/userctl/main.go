// Command userctl lists and adds users against a collection endpoint from
// the terminal, using the same board as the web page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/user-board/internal/board"
	"github.com/msomdec/user-board/internal/client"
	"github.com/msomdec/user-board/internal/view"
)

const usage = `usage: userctl [-api URL] [-timeout D] [-v] <command> [flags]

commands:
  list                     print the collection
  add -name N -age A       add a user, then print the collection
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("userctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	api := fs.String("api", envOrDefault("USERS_API_URL", "http://localhost:8080/user"), "collection endpoint")
	timeout := fs.Duration("timeout", 10*time.Second, "per-request timeout")
	verbose := fs.Bool("v", false, "log requests to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	remote, err := client.New(*api, client.WithHTTPClient(&http.Client{Timeout: *timeout}), client.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(stderr, "userctl:", err)
		return 2
	}

	b := board.New(remote, board.WithLogger(logger))
	defer b.Close()

	switch fs.Arg(0) {
	case "list":
		if err := b.Mount(ctx); err != nil {
			fmt.Fprintln(stderr, "userctl:", err)
			return 1
		}
	case "add":
		addFlags := flag.NewFlagSet("add", flag.ContinueOnError)
		addFlags.SetOutput(stderr)
		name := addFlags.String("name", "", "user name")
		age := addFlags.String("age", "", "user age")
		if err := addFlags.Parse(fs.Args()[1:]); err != nil {
			return 2
		}

		b.SetName(*name)
		b.SetAge(*age)
		if err := b.Submit(ctx); err != nil {
			var verr *board.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintln(stderr, verr.Notice)
				return 2
			}
			fmt.Fprintln(stderr, "userctl:", err)
			return 1
		}
	default:
		fs.Usage()
		return 2
	}

	printUsers(stdout, b.Snapshot())
	return 0
}

func printUsers(w io.Writer, s board.State) {
	if len(s.Users) == 0 {
		fmt.Fprintln(w, view.EmptyMessage)
		return
	}
	for _, u := range s.Users {
		fmt.Fprintln(w, view.UserLabel(u))
	}
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
