package cmd

import (
	"github.com/ikolcov/cmsblog/internal/site"
	"github.com/spf13/cobra"
)

var servePort uint16

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the blog over HTTP",
	Long: `The serve command renders pages on request. The first page of posts is
kept for site.revalidate and refreshed afterwards; older pages are fetched
from the CMS as readers load more posts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Site.Port = servePort
		}
		s, err := newSite()
		if err != nil {
			return err
		}
		return site.NewServer(site.ServerConfig{Port: cfg.Site.Port}, s).Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Uint16Var(&servePort, "port", 0, "port to listen on (overrides site.port)")
	rootCmd.AddCommand(serveCmd)
}
