package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/axvier/blog/internal/client"
)

// readPassword is swapped out in tests.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

var errUsage = errors.New("unknown command; run blogctl --help")

type app struct {
	session *client.Session
	router  *client.Router
	in      *bufio.Reader
	out     io.Writer
}

func newApp(api client.AuthAPI, store client.StateStore, logger zerolog.Logger, in io.Reader, out io.Writer) *app {
	a := &app{in: bufio.NewReader(in), out: out}
	a.session = client.NewSession(api, store,
		client.WithSessionLogger(logger),
		client.WithLocation(func() string { return a.router.Current() }),
	)
	a.router = client.NewRouter(client.NewGuard(a.session), "/")
	return a
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "logout":
		a.session.Restore(ctx)
		a.session.Logout(ctx)
		fmt.Fprintln(a.out, "Logged out")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "visit":
		if len(args) < 2 {
			return errors.New("visit needs a path")
		}
		return a.visit(ctx, args[1])
	default:
		return errUsage
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	var identifier string
	if len(args) > 0 {
		identifier = args[0]
	} else {
		fmt.Fprint(a.out, "Email or username: ")
		line, err := a.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		identifier = strings.TrimSpace(line)
	}

	fmt.Fprint(a.out, "Password: ")
	pw, err := readPassword()
	fmt.Fprintln(a.out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	if err := a.session.Login(ctx, identifier, string(pw)); err != nil {
		return err
	}
	u := a.session.User()
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", u.Username, u.Role)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if !a.session.Restore(ctx) {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	u := a.session.User()
	fmt.Fprintf(a.out, "%s <%s> %s\n", u.Username, u.Email, u.Role)
	return nil
}

func (a *app) visit(ctx context.Context, path string) error {
	a.session.Restore(ctx)
	final, err := a.router.Navigate(ctx, path)
	if err != nil {
		return err
	}
	if final != path {
		fmt.Fprintf(a.out, "%s -> %s\n", path, final)
		return nil
	}
	fmt.Fprintln(a.out, final)
	return nil
}
