package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/habiliai/docstore/vcs"
	"github.com/spf13/cobra"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	params := &struct {
		Limit int
		JSON  bool
	}{}
	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "Show the commits that touched a document or directory",
		Args:  cobra.MaximumNArgs(1),
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

			var path string
			if len(args) > 0 {
				path = args[0]
			}
			commits, err := ds.Documents().History(cmd.Context(), path, params.Limit)
			if err != nil {
				return err
			}

			if params.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(commits)
			}
			return printHistory(cmd.OutOrStdout(), commits)
		},
	}

	cmd.Flags().IntVarP(&params.Limit, "limit", "n", 0, "Maximum number of commits (0 for all)")
	cmd.Flags().BoolVar(&params.JSON, "json", false, "Print commits as JSON")

	return cmd
}

func printHistory(w io.Writer, commits []vcs.CommitRecord) error {
	for _, c := range commits {
		rev := c.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		if _, err := fmt.Fprintf(w, "%s %s %s <%s> %s\n",
			rev, c.Time.UTC().Format(time.RFC3339), c.Author.Name, c.Author.Email, subject,
		); err != nil {
			return err
		}
	}
	return nil
}
