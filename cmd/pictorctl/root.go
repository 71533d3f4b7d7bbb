package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pictor/internal/config"
	"pictor/internal/core"
	"pictor/internal/logging"
	"pictor/internal/repository"
	"pictor/pkg/domain"
)

// app holds what every subcommand needs once the root flags are parsed.
type app struct {
	cfgPath string
	cfg     config.Config
	v       *viper.Viper
	log     *logging.ZapLogger
}

// store is an opened Context with its read side and the active session.
type store struct {
	c     *core.Context
	repos *repository.Repositories
	sess  domain.SessionContext
}

func (s *store) Close() error { return s.c.Close() }

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pictorctl",
		Short:         "Inspect and maintain a pictor record store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (yaml, toml or json)")

	root.AddGroup(
		&cobra.Group{ID: "read", Title: "Queries:"},
		&cobra.Group{ID: "maintenance", Title: "Maintenance:"},
	)
	root.AddCommand(
		newStatsCmd(a),
		newPendingCmd(a),
		newProjectsCmd(a),
		newWatchCmd(a),
		newPurgeUserCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, v, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.cfg, a.v, a.log = cfg, v, log
	return nil
}

// open builds the write path from the loaded configuration and resumes the
// stored session, creating an anonymous one on an empty store.
func (a *app) open(ctx context.Context) (*store, error) {
	c, err := core.Open(ctx, a.cfg, core.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	sess, err := c.StartSession(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &store{c: c, repos: repository.FromContext(c), sess: sess}, nil
}
