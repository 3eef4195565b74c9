package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCheckCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check [file-or-dir]",
		Short: "Fail if index.ts is missing re-exports, without writing anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, ok, err := activeDir(args)
			if err != nil || !ok {
				return err
			}

			syncer, log, err := o.syncer(cmd, dir)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := syncer.Check(cmd.Context())
			if res != nil {
				for _, d := range res.Diagnostics {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", res.Path, d)
				}
			}
			if isStale(err) {
				if res.Created {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s does not exist\n", res.Path)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s is missing: %s\n", res.Path, strings.Join(res.Added, ", "))
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date\n", res.Path)
			return nil
		},
	}
}
