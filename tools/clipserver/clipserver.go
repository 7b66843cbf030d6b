package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mogaika/anim_decompressor/config"
	"github.com/mogaika/anim_decompressor/database"
	"github.com/mogaika/anim_decompressor/status"
	"github.com/mogaika/anim_decompressor/web"
)

func main() {
	var configPath, listen, dir string

	root := &cobra.Command{
		Use:          "clipserver",
		Short:        "Serve a directory of animation clips over http",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadToolConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if dir != "" {
				cfg.ClipsDirectory = dir
			}
			if err := cfg.Apply(); err != nil {
				return err
			}

			var logger *zap.Logger
			if cfg.Debug {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return err
			}
			defer logger.Sync()
			zap.ReplaceGlobals(logger)

			db := database.New()
			defer db.Close()
			db.WithLogger(logger)

			hub := status.NewHub(logger)
			lib := web.NewLibrary(cfg.ClipsDirectory, db, hub, logger)
			if err := lib.Load(); err != nil {
				return err
			}

			return web.NewServer(lib, hub, cfg, logger).ListenAndServe(cfg.Listen)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "yaml config file")
	root.Flags().StringVarP(&listen, "listen", "i", "", "address of server, overrides the config")
	root.Flags().StringVarP(&dir, "dir", "d", "", "clips directory, overrides the config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
