package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/kanjibates/saloon/oauth2flow"
)

func (a *app) authorizeCommand() *cobra.Command {
	var (
		scopes  []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Run the authorization code grant and store the tokens",
		Long: `Print the authorization URL, wait for the provider to redirect back to the
redirect URI, check the state, exchange the code and write the tokens to the token file.

The redirect URI must point at this machine, e.g. http://localhost:8080/callback.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return a.authorize(ctx, scopes)
		},
	}

	cmd.Flags().StringSliceVarP(&scopes, "scope", "s", nil, "scopes to request in addition to the default scopes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the redirect")
	return cmd
}

func (a *app) authorize(ctx context.Context, scopes []string) error {
	flow, err := a.newFlow()
	if err != nil {
		return err
	}

	redirect, err := url.Parse(flow.Config().RedirectURI)
	if err != nil || redirect.Host == "" {
		return &configError{err: fmt.Errorf("redirect uri %q is not an absolute URL", flow.Config().RedirectURI)}
	}

	address := redirect.Host
	if redirect.Port() == "" {
		address = net.JoinHostPort(redirect.Hostname(), "80")
	}
	listener, err := a.listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	authURL, err := flow.AuthorizationURL(scopes)
	if err != nil {
		_ = listener.Close()
		return err
	}

	results := make(chan callbackResult, 1)
	server := newCallbackServer(flow, redirect.Path, results)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("callback server stopped")
		}
	}()
	defer shutdown(server)

	a.logger.Info().Str("listen", listener.Addr().String()).Str("path", redirect.Path).Msg("waiting for the authorization redirect")
	a.showURL(authURL)

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization: %w", ctx.Err())
	case res := <-results:
		if res.err != nil {
			return res.err
		}
		if err := a.saveToken(res.auth); err != nil {
			return err
		}
		a.logger.Info().
			Bool("refreshable", res.auth.IsRefreshable()).
			Time("expiry", res.auth.Expiry).
			Msg("authorization complete")
		fmt.Fprintf(a.out, "Tokens written to %s\n", a.tokenFile)
		return nil
	}
}

type callbackResult struct {
	auth *oauth2flow.Authenticator
	err  error
}

// newCallbackServer serves the redirect path. The first request carrying a code or an
// error claims the authorization before any exchange; the result is sent on results
// exactly once and later requests get 410 Gone.
func newCallbackServer(flow *oauth2flow.Flow, path string, results chan<- callbackResult) *http.Server {
	if path == "" {
		path = "/"
	}

	var claimed atomic.Bool
	claim := func(w http.ResponseWriter) bool {
		if claimed.CompareAndSwap(false, true) {
			return true
		}
		http.Error(w, "Authorization already handled", http.StatusGone)
		return false
	}
	finish := func(res callbackResult) {
		results <- res
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if claimed.Load() {
			http.Error(w, "Authorization already handled", http.StatusGone)
			return
		}

		query := r.URL.Query()
		if providerErr := query.Get("error"); providerErr != "" {
			if !claim(w) {
				return
			}
			http.Error(w, "Authorization denied: "+html.EscapeString(providerErr), http.StatusBadRequest)
			finish(callbackResult{err: fmt.Errorf("authorization denied: %s %s", providerErr, query.Get("error_description"))})
			return
		}

		code := query.Get("code")
		if code == "" {
			http.Error(w, "Code parameter missing", http.StatusBadRequest)
			return
		}
		if !claim(w) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		auth, err := flow.AccessToken(ctx, code, oauth2flow.WithCallbackState(query.Get("state")))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, oauth2flow.ErrInvalidState) {
				status = http.StatusBadRequest
			}
			http.Error(w, "Authorization failed: "+html.EscapeString(err.Error()), status)
			finish(callbackResult{err: err})
			return
		}

		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Authorization successful. You can close this window.</body></html>`))
		finish(callbackResult{auth: auth})
	})

	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

// localListen is net.Listen restricted to addresses on this machine.
func localListen(network, address string) (net.Listener, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	if host != "localhost" && host != "" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			return nil, fmt.Errorf("redirect host %q is not a loopback address", host)
		}
	}
	return net.Listen(network, address)
}
