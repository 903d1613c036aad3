package cmd

import (
	"github.com/spf13/cobra"
)

var outputDir string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the blog as a static site",
	Long: `The generate command fetches every post from the CMS and writes the home
page, one page per load-more step, one page per post and the RSS feed into
the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputDir != "" {
			cfg.Site.OutputDir = outputDir
		}
		s, err := newSite()
		if err != nil {
			return err
		}
		return s.Generate(cmd.Context(), cfg.Site.OutputDir)
	},
}

func init() {
	generateCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (overrides site.output_dir)")
	rootCmd.AddCommand(generateCmd)
}
