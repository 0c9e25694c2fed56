package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kanjibates/saloon/oauth2flow"
)

func (a *app) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.refresh(cmd.Context())
		},
	}
}

func (a *app) refresh(ctx context.Context) error {
	flow, err := a.newFlow()
	if err != nil {
		return err
	}

	current, err := oauth2flow.LoadAuthenticator(a.tokenFile)
	if err != nil {
		return err
	}

	refreshed, err := flow.Refresh(ctx, current)
	if err != nil {
		return err
	}
	if err := a.saveToken(refreshed); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Access token refreshed, expires %s\n", describeExpiry(refreshed))
	return nil
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Fetch the authenticated user with the stored token",
		Long: `Fetch the user endpoint with the stored access token and print the JSON body.
An expired token is refreshed first and the token file updated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.whoami(cmd.Context())
		},
	}
}

func (a *app) whoami(ctx context.Context) error {
	flow, err := a.newFlow()
	if err != nil {
		return err
	}

	current, err := oauth2flow.LoadAuthenticator(a.tokenFile)
	if err != nil {
		return err
	}

	source := flow.TokenSource(ctx, current, oauth2flow.WithExpiryLeeway(0), oauth2flow.WithRefreshCallback(a.saveToken))
	if _, err := source.TokenWithContext(ctx); err != nil {
		return err
	}

	resp, err := flow.User(ctx, source.Authenticator())
	if err != nil {
		return err
	}
	if err := resp.Throw(); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Body(), "", "  "); err != nil {
		fmt.Fprintln(a.out, resp.String())
		return nil
	}
	fmt.Fprintln(a.out, pretty.String())
	return nil
}

func describeExpiry(auth *oauth2flow.Authenticator) string {
	if auth.Expiry.IsZero() {
		return "never"
	}
	return "at " + auth.Expiry.Local().Format("2006-01-02 15:04:05 MST")
}
