package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"socialchat/global/config"
	"socialchat/tools/errs"
	"socialchat/tools/security"
)

var (
	userID string
	ttl    time.Duration
)

// rootCmd prints a signed access token for local testing:
//
//	go run ./cmd/devtoken --user 6f1c...
var rootCmd = &cobra.Command{
	Use:          "devtoken",
	Short:        "Mint a bearer token for the chat gateway",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		opts := security.Options{Secret: cfg.JWTSecret, Alg: cfg.JWTAlg, TTL: cfg.JWTTTL}
		if ttl > 0 {
			opts.TTL = ttl
		}
		token, exp, err := security.Generate(opts, userID, nil)
		if err != nil {
			return errs.WrapMsg(err, "sign token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVarP(&userID, "user", "u", "", "user id to put in the sub claim")
	rootCmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, JWT_TTL when zero")
	_ = rootCmd.MarkFlagRequired("user")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
