package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	goJWT "github.com/MrEthical07/goJWT"
	"github.com/MrEthical07/goJWT/jwt"
	"github.com/spf13/cobra"
)

func newSignCmd(opts *cliOptions) *cobra.Command {
	var (
		subject string
		claims  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a token with the configured algorithm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(func(engine *goJWT.Engine) error {
				b := engine.NewToken()
				if subject != "" {
					b.WithSubject(subject)
				}
				if ttl > 0 {
					b.WithExpiresAt(time.Now().Add(ttl))
				}
				for _, kv := range claims {
					name, value, ok := strings.Cut(kv, "=")
					if !ok || name == "" {
						return fmt.Errorf("claim %q is not name=value", kv)
					}
					b.WithNonStandardClaim(name, parseClaimValue(value))
				}

				token, err := engine.Sign(cmd.Context(), b)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "subject claim")
	cmd.Flags().StringArrayVar(&claims, "claim", nil, "extra claim as name=value (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime overriding the configured TTL")
	return cmd
}

// parseClaimValue keeps integers and booleans typed; everything else is a
// string.
func parseClaimValue(v string) jwt.Claim {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return jwt.Int(n)
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return jwt.Bool(b)
	}
	return jwt.String(v)
}
