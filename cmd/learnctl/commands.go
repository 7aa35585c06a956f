package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/claimtoken"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/entitlement"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/repository"
	"github.com/spf13/cobra"
)

const defaultCountsFile = "data/courseCounts.json"

type rootOptions struct {
	file string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "learnctl",
		Short:         "Operate on the Learn-AI course counter store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	file := os.Getenv("COURSE_COUNTS_FILE")
	if file == "" {
		file = defaultCountsFile
	}
	root.PersistentFlags().StringVar(&opts.file, "file", file, "path to the course counter JSON file")

	root.AddCommand(
		newStatsCmd(opts),
		newShowCmd(opts),
		newRegisterCmd(opts),
		newUpgradeCmd(opts),
		newWipeCmd(opts),
		newDecodeTokenCmd(),
		newDeviceCmd(),
	)
	return root
}

func (o *rootOptions) store() *repository.UsageFileStore {
	return repository.NewUsageFileStore(o.file, nil)
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print user and course totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), opts.store().Statistics(cmd.Context()))
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var free, premium int
	cmd := &cobra.Command{
		Use:   "show <identifier>",
		Short: "Show one usage record and its current decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, ok, err := opts.store().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no record for %q", args[0])
			}
			decision := entitlement.DecideAt(*rec, entitlement.Limits{Free: free, Premium: premium}, time.Now())
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"identifier": args[0],
				"record":     rec,
				"decision":   decision,
			})
		},
	}
	cmd.Flags().IntVar(&free, "free-limit", 2, "monthly limit for anonymous users")
	cmd.Flags().IntVar(&premium, "premium-limit", 50, "monthly limit for premium users")
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var (
		count   int
		premium bool
	)
	cmd := &cobra.Command{
		Use:   "register <identifier>",
		Short: "Create a usage record, optionally with courses already counted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userType := domain.UserTypeAnonymous
			if premium {
				userType = domain.UserTypePremium
			}
			rec, created, err := opts.store().Register(cmd.Context(), args[0], userType, count)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s already registered, left unchanged\n", args[0])
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "initial course count")
	cmd.Flags().BoolVar(&premium, "premium", false, "register as premium")
	return cmd
}

func newUpgradeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <identifier>",
		Short: "Move an identifier to the premium allowance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := opts.store().SetUserType(cmd.Context(), args[0], domain.UserTypePremium)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newWipeCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Replace the counter store with an empty document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe %s without --yes", opts.file)
			}
			if err := opts.store().Wipe(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wiped %s\n", opts.file)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}

func newDecodeTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "decode-token <verificationToken>",
		Short: "Decode a claim token and report whether it is still within its TTL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := claimtoken.Decode(args[0])
			if err != nil {
				return err
			}
			_, verr := claimtoken.Verify(args[0], ttl, time.Now())
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"subscriptionId": payload.SubscriptionID,
				"productId":      payload.ProductID,
				"issuedAt":       payload.Issued().UTC(),
				"expired":        verr != nil,
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", claimtoken.DefaultTTL, "token lifetime")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
