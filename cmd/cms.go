package cmd

import (
	"context"

	"github.com/ikolcov/cmsblog/internal/app"
	"github.com/ikolcov/cmsblog/internal/content"
	"github.com/ikolcov/cmsblog/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var contentDir string

var cmsCmd = &cobra.Command{
	Use:   "cms",
	Short: "Run a local Prismic-compatible content API",
	Long: `The cms command serves documents through the subset of the Prismic REST API
the blog uses. Documents live in memory or in MongoDB, optionally behind a
Redis cache, and can be imported from a directory of Markdown files that is
watched for changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if contentDir != "" {
			cfg.Store.ContentDir = contentDir
		}
		ctx := cmd.Context()

		store, closeStore, err := newStorage(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if cfg.Store.ContentDir != "" {
			if _, err := content.Import(ctx, store, cfg.Store.ContentDir); err != nil {
				return err
			}
		}

		g, ctx := errgroup.WithContext(ctx)
		if cfg.Store.ContentDir != "" && cfg.Store.Watch {
			watcher, err := content.NewWatcher(cfg.Store.ContentDir)
			if err != nil {
				return err
			}
			g.Go(func() error {
				watcher.Run(ctx, func() {
					if _, err := content.Import(ctx, store, cfg.Store.ContentDir); err != nil {
						log.Error().Err(err).Msg("content reload failed")
					}
				})
				return nil
			})
		}
		g.Go(func() error {
			return app.New(app.AppConfig{
				Port:        cfg.Store.Port,
				AccessToken: cfg.Store.AccessToken,
				Ref:         cfg.Store.Ref,
			}, store).Start(ctx)
		})
		return g.Wait()
	},
}

func newStorage(ctx context.Context) (storage.Storage, func(), error) {
	var persistent storage.Storage = storage.NewInMemoryStorage()
	closeStore := func() {}

	if cfg.Store.Backend == "mongo" {
		mongoStorage, err := storage.NewMongoStorage(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		persistent = mongoStorage
		closeStore = func() {
			if err := mongoStorage.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("can't disconnect from mongo")
			}
		}
	}

	if cfg.Store.RedisURL != "" {
		return storage.NewCachedStorage(cfg.Store.RedisURL, cfg.Store.CacheTTL, persistent), closeStore, nil
	}
	return persistent, closeStore, nil
}

func init() {
	cmsCmd.Flags().StringVar(&contentDir, "content", "", "directory of Markdown posts to import (overrides store.content_dir)")
	rootCmd.AddCommand(cmsCmd)
}
