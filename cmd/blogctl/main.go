package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/axvier/blog/internal/client"
	"github.com/axvier/blog/internal/config"
	"github.com/axvier/blog/internal/logging"
)

const usage = `usage: blogctl [flags] <command> [args]

commands:
  login [identifier]   sign in; the password is read from the terminal
  logout               sign out and forget the stored session
  whoami               show the signed-in user
  visit <path>         navigate to a path through the route guard

flags:
`

func main() {
	flags := pflag.NewFlagSet("blogctl", pflag.ContinueOnError)
	apiURL := flags.String("api", "", "blog API base URL (overrides API_BASE_URL)")
	sessionDB := flags.String("session-db", "", "session database path (overrides SESSION_DB)")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *sessionDB != "" {
		cfg.SessionDB = *sessionDB
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	store, err := client.OpenSQLite(ctx, cfg.SessionDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("open session store")
	}
	defer store.Close()

	api := client.NewAPI(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout})
	a := newApp(api, store, logger, os.Stdin, os.Stdout)

	if err := a.run(ctx, flags.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
