package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kanjibates/saloon/oauth2flow"
)

// discoveredEndpoints is printed in the config file format so it can be pasted into one.
type discoveredEndpoints struct {
	AuthorizeEndpoint string `yaml:"authorize_endpoint"`
	TokenEndpoint     string `yaml:"token_endpoint"`
	UserEndpoint      string `yaml:"user_endpoint,omitempty"`
}

func (a *app) discoverCommand() *cobra.Command {
	var issuer string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the endpoints of an OpenID Connect issuer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.discover(cmd.Context(), issuer)
		},
	}

	cmd.Flags().StringVar(&issuer, "issuer", "", "issuer URL, e.g. https://accounts.google.com")
	_ = cmd.MarkFlagRequired("issuer")
	return cmd
}

func (a *app) discover(ctx context.Context, issuer string) error {
	if issuer == "" {
		return &configError{err: errors.New("--issuer is required")}
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	discovered, err := oauth2flow.Discover(ctx, issuer, cfg, nil)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	if err := enc.Encode(discoveredEndpoints{
		AuthorizeEndpoint: discovered.AuthorizeURL(),
		TokenEndpoint:     discovered.TokenURL(),
		UserEndpoint:      discovered.UserEndpoint,
	}); err != nil {
		return err
	}
	return enc.Close()
}
