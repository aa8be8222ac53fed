package main

import (
	"github.com/spf13/cobra"

	"github.com/cognicore/themedup/internal/records"
	"github.com/cognicore/themedup/pkg/themedup"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		input      string
		noEmbed    bool
		maxThemes  int
		themesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract unique themes from a JSONL corpus",
		Long: `Reads one {"id","content","metadata"} object per line ("-" for stdin),
extracts candidate themes and prints the accepted, rejected and clustered
themes as JSON. Accepted themes are registered under --scope.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if noEmbed {
				a.cfg.UseEmbeddings = false
			}
			if maxThemes > 0 {
				a.cfg.MaxThemes = maxThemes
			}

			recs, err := records.LoadJSONL(input, a.logger)
			if err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			reg, closeStore, err := a.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := engine.Extract(ctx, themedup.Request{Records: recs, Registry: reg})
			if err != nil {
				a.logger.Error("extraction", "err", err)
				if len(res.Themes) == 0 {
					return err
				}
			}
			if themesOnly {
				return printJSON(cmd.OutOrStdout(), res.Themes)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input JSONL file (required)")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "Compare by keyword overlap only")
	cmd.Flags().IntVar(&maxThemes, "max-themes", 0, "Override max accepted themes")
	cmd.Flags().BoolVar(&themesOnly, "themes-only", false, "Print only accepted themes")
	cmd.MarkFlagRequired("input")
	return cmd
}
