package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kanjibates/saloon/oauth2flow"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeInvalidState indicates the callback state did not match.
	ExitCodeInvalidState = 2
	// ExitCodeConfig indicates missing or invalid client configuration.
	ExitCodeConfig = 3
)

// EnvPrefix prefixes the environment variables that override the config file.
const EnvPrefix = "SALOON_"

// configError marks failures to load or validate the client configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// app holds the flags and collaborators shared by the commands.
type app struct {
	configFile string
	tokenFile  string
	verbose    bool

	out    io.Writer
	logger zerolog.Logger

	// listen opens the callback listener; tests replace it.
	listen func(network, address string) (net.Listener, error)
	// showURL presents the authorization URL to the user.
	showURL func(url string)
}

func newApp(stdout, stderr io.Writer) *app {
	a := &app{
		out:    stdout,
		logger: zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).With().Timestamp().Logger(),
		listen: localListen,
	}
	a.showURL = func(url string) {
		fmt.Fprintf(a.out, "Open the following URL in your browser:\n\n  %s\n\n", url)
	}
	return a
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "saloon-oauth",
		Short: "Authorize against an OAuth2 provider and manage the tokens",
		Long: `saloon-oauth runs the OAuth2 authorization code grant against a provider
described by a YAML config file and stores the tokens in a JSON file.

The client credentials can also come from the environment:
  SALOON_CLIENT_ID, SALOON_CLIENT_SECRET, SALOON_REDIRECT_URI, SALOON_BASE_URL`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if a.verbose {
				level = zerolog.DebugLevel
			}
			a.logger = a.logger.Level(level)
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "YAML client config file")
	root.PersistentFlags().StringVar(&a.tokenFile, "token-file", defaultTokenFile(), "file the tokens are stored in")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log token requests")

	root.AddCommand(
		a.authorizeCommand(),
		a.refreshCommand(),
		a.whoamiCommand(),
		a.discoverCommand(),
	)
	return root
}

// loadConfig reads the config file, if any, and applies the environment.
func (a *app) loadConfig() (oauth2flow.Config, error) {
	var cfg oauth2flow.Config
	if a.configFile != "" {
		loaded, err := oauth2flow.LoadConfigFile(a.configFile)
		if err != nil {
			return oauth2flow.Config{}, &configError{err: err}
		}
		cfg = loaded
	}
	return cfg.ApplyEnv(EnvPrefix), nil
}

// newFlow loads and validates the config and creates a flow logging through zerolog.
func (a *app) newFlow() (*oauth2flow.Flow, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, &configError{err: err}
	}
	return oauth2flow.NewFlow(cfg, oauth2flow.WithLogger(&a.logger)), nil
}

func (a *app) saveToken(auth *oauth2flow.Authenticator) error {
	if err := oauth2flow.SaveAuthenticator(a.tokenFile, auth); err != nil {
		return err
	}
	a.logger.Debug().Str("path", a.tokenFile).Msg("token file written")
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "saloon-token.json"
	}
	return filepath.Join(dir, "saloon", "token.json")
}

// exitCode maps command errors to the documented exit codes.
func exitCode(err error) int {
	var cfgErr *configError
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, oauth2flow.ErrInvalidState):
		return ExitCodeInvalidState
	case errors.As(err, &cfgErr), errors.Is(err, oauth2flow.ErrInvalidConfig):
		return ExitCodeConfig
	default:
		return ExitCodeError
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("command failed")
	}
	return exitCode(err)
}
