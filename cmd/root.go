package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ikolcov/cmsblog/internal/cms"
	"github.com/ikolcov/cmsblog/internal/config"
	"github.com/ikolcov/cmsblog/internal/site"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "config.toml"

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cmsblog",
	Short: "A blog rendered from a Prismic-compatible CMS",
	Long: `cmsblog renders a paginated post list and one page per post from the
documents of a headless CMS. It can serve the pages, write them out as a
static site, or run a local content API seeded from Markdown files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+defaultConfigFile+")")
}

func initializeConfig() error {
	path, required := defaultConfigFile, false
	if cfgFile != "" {
		path, required = cfgFile, true
	}

	loaded, err := config.Load(path, required)
	if err != nil {
		return err
	}
	cfg = loaded
	config.SetupLogging(cfg.Log)
	log.Debug().Str("config", path).Msg("configuration loaded")
	return nil
}

func newSite() (*site.Site, error) {
	client := cms.New(
		cfg.CMS.Endpoint,
		cms.WithAccessToken(cfg.CMS.AccessToken),
		cms.WithTimeout(cfg.CMS.Timeout),
	)
	return site.New(client, site.Config{
		Title:       cfg.Site.Title,
		BaseURL:     cfg.Site.BaseURL,
		Locale:      cfg.Site.Locale,
		Location:    cfg.Site.Location(),
		PageSize:    cfg.Site.PageSize,
		MaxPages:    cfg.Site.MaxPages,
		Revalidate:  cfg.Site.Revalidate,
		Concurrency: cfg.Site.Concurrency,
	})
}
