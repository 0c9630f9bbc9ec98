package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/auth"
	"github.com/SyahrulApr86/Weekly-Schedules/pkg/client"
	authlib "github.com/SyahrulApr86/Weekly-Schedules/pkg/platform/auth"
)

// remoteFlags selects the API and how to authenticate against it. A bearer
// token wins over email/password sign-in.
type remoteFlags struct {
	apiURL   string
	token    string
	tokenURL string
	clientID string
	email    string
	password string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.apiURL, "api", envOr("WIIKS_API", "http://localhost:8080"), "schedule API base URL")
	cmd.PersistentFlags().StringVar(&f.token, "token", os.Getenv("WIIKS_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&f.tokenURL, "token-url", os.Getenv("WIIKS_TOKEN_URL"), "OAuth2 token endpoint for --email/--password")
	cmd.PersistentFlags().StringVar(&f.clientID, "client-id", envOr("WIIKS_CLIENT_ID", "wiiksctl"), "OAuth2 client id")
	cmd.PersistentFlags().StringVar(&f.email, "email", os.Getenv("WIIKS_EMAIL"), "account email")
	cmd.PersistentFlags().StringVar(&f.password, "password", os.Getenv("WIIKS_PASSWORD"), "account password")
}

func (f *remoteFlags) client(ctx context.Context) (*client.Client, error) {
	if f.token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: f.token, TokenType: "Bearer"})
		return client.New(f.apiURL, oauth2.NewClient(ctx, src)), nil
	}
	if f.email == "" || f.tokenURL == "" {
		return nil, errors.New("set --token, or --email, --password and --token-url")
	}
	session := client.NewSession(client.SessionConfig{
		ClientID: f.clientID,
		TokenURL: f.tokenURL,
		Scopes:   []string{auth.ScopeSchedulesRead, auth.ScopeSchedulesWrite},
	})
	if err := session.SignIn(ctx, f.email, f.password); err != nil {
		return nil, err
	}
	return client.New(f.apiURL, session.HTTPClient()), nil
}

func newGroupsCmd() *cobra.Command {
	var flags remoteFlags
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage schedule groups on a running API",
	}
	flags.register(cmd)

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List your schedule groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			c, err := flags.client(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDEFAULT")
			cursor := ""
			for {
				page, err := c.ListGroups(ctx, cursor, limit)
				if err != nil {
					return err
				}
				for _, g := range page.Items {
					fmt.Fprintf(w, "%s\t%s\t%t\n", g.ID, g.Name, g.IsDefault)
				}
				if page.NextCursor == "" {
					break
				}
				cursor = page.NextCursor
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&limit, "page-size", 50, "groups fetched per request")

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a schedule group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			c, err := flags.client(ctx)
			if err != nil {
				return err
			}
			g, err := c.CreateGroup(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q\n", g.ID, g.Name)
			return nil
		},
	}

	cmd.AddCommand(list, create)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject, secret, issuer, audience string
		scopes                            []string
		ttl                               time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 development token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or AUTH_HS256_SECRET is required")
			}
			token, err := authlib.Issue(authlib.Config{Secret: secret, Issuer: issuer, Audience: audience}, subject, scopes, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dev-user", "token subject, the schedule owner")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_HS256_SECRET"), "HS256 signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", envOr("AUTH_ISSUER", "wiiks.identity"), "token issuer")
	cmd.Flags().StringVar(&audience, "audience", os.Getenv("AUTH_AUDIENCE"), "token audience")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{auth.ScopeSchedulesRead, auth.ScopeSchedulesWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

