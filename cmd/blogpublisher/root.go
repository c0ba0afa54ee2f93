package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	blogpublisher "github.com/eringen/blogpublisher"
	"github.com/eringen/blogpublisher/store"
)

const skipConfigLoad = "skipConfigLoad"

// commandContext carries what PersistentPreRunE prepared to the subcommands.
type commandContext struct {
	configPath string
	verbose    bool

	cfg    blogpublisher.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:           "blogpublisher",
		Short:         "Draft blog posts locally and publish them to Blogger or WordPress",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigLoad] == "true" {
				return nil
			}
			return cc.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = cc.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Configuration file path (.env, YAML, TOML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&cc.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newBackupCommand(cc))
	rootCmd.AddCommand(newRestoreCommand(cc))
	rootCmd.AddCommand(newSeedCommand(cc))
	rootCmd.AddCommand(newInfoCommand(cc))
	rootCmd.AddCommand(newPostsCommand(cc))
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func (cc *commandContext) load() error {
	cfg, err := blogpublisher.LoadConfig(cc.configPath)
	if err != nil {
		return err
	}
	cc.cfg = cfg

	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	if cc.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	cc.logger = logger
	return nil
}

// openStore opens the configured database for the offline commands.
func (cc *commandContext) openStore() (*store.Store, error) {
	s, err := store.Open(cc.cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	cc.logger.Debug("opened database", zap.String("path", s.Path()))
	return s, nil
}
