package cmd

import (
	"fmt"

	"github.com/habiliai/docstore/document"
	"github.com/spf13/cobra"
)

func newRevertCmd(flags *rootFlags) *cobra.Command {
	params := &struct {
		Message string
	}{}
	cmd := &cobra.Command{
		Use:   "revert <root> <revision>",
		Short: "Restore a storage root to a past revision in a new commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := flags.loadConfig()
			if err != nil {
				return err
			}
			ds, err := flags.open(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer ds.Close()

			var opts []document.WriteOption
			if params.Message != "" {
				opts = append(opts, document.WithMessage(params.Message))
			}
			record, err := ds.Documents().Revert(cmd.Context(), args[0], args[1], opts...)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", record.Revision, record.Message)
			return err
		},
	}

	cmd.Flags().StringVarP(&params.Message, "message", "m", "", "Commit message")

	return cmd
}
