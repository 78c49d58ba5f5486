package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goJWT "github.com/MrEthical07/goJWT"
	"github.com/spf13/cobra"
)

func newVerifyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify a token and print its header and claims",
		Long:  "Verify a token and print its header and claims. The token is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenArg(cmd, args)
			if err != nil {
				return err
			}
			return opts.withEngine(func(engine *goJWT.Engine) error {
				decoded, err := engine.Verify(cmd.Context(), token)
				if err != nil {
					return err
				}
				out := struct {
					Header any `json:"header"`
					Claims any `json:"claims"`
				}{decoded.Header(), decoded.Claims()}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}
}

func tokenArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", errors.New("no token given")
	}
	return strings.TrimSpace(sc.Text()), nil
}
