package cmd

import (
	"github.com/spf13/cobra"

	"github.com/optout-tools/optout/pkg/history"
	"github.com/optout-tools/optout/pkg/optout/output"
)

func NewHistoryCommand() *cobra.Command {
	var (
		profile string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded opt-out sends, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, err := rt.configOrDefault()
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Settings.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), profile, limit)
			if err != nil {
				return err
			}
			if format == output.FormatTable {
				output.WriteHistoryTable(rt.Writer(), entries)
				return nil
			}
			if entries == nil {
				entries = []history.Entry{}
			}
			return output.WriteObject(rt.Writer(), format, entries)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Only show sends of this profile")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries, 0 for all")
	return cmd
}
