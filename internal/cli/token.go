package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/jeffersonwarrior/asynchttp/internal/identity"
)

func (cli *CLI) newTokenCommand() *cobra.Command {
	var (
		force  bool
		claims bool
	)

	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Print the bearer token the issuer hands out for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.loadConfig()
			if err != nil {
				return err
			}

			issuer, closer, err := newIssuer(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			policy := identity.UseCached
			if force {
				policy = identity.ForceRefresh
			}
			ch, err := issuer.GetTokenAndSignature(cmd.Context(), identity.TokenRequest{
				User:   &identity.User{ID: args[0], Name: args[0]},
				Policy: policy,
			})
			if err != nil {
				return err
			}

			var res identity.Result
			select {
			case res = <-ch:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
			if res.Err != nil {
				return res.Err
			}

			if !claims {
				_, err = fmt.Fprintln(cli.out, res.Credential.Token)
				return err
			}

			c, err := issuer.Verify(res.Credential.Token)
			if err != nil {
				return err
			}
			out, err := claimsJSON(c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cli.out, out)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Mint a new token instead of reusing the cached one")
	cmd.Flags().BoolVar(&claims, "claims", false, "Print the verified claims as JSON instead of the token")
	return cmd
}

// claimsJSON renders verified claims with RFC 3339 timestamps.
func claimsJSON(c *identity.Claims) (string, error) {
	out := `{}`
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"sub", c.Subject},
		{"iss", c.Issuer},
		{"jti", c.ID},
		{"iat", c.IssuedAt.UTC().Format(time.RFC3339)},
		{"exp", c.ExpiresAt.UTC().Format(time.RFC3339)},
	} {
		if out, err = sjson.Set(out, kv.path, kv.value); err != nil {
			return "", err
		}
	}
	return out, nil
}
