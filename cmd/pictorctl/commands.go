package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"pictor/internal/config"
	"pictor/internal/core"
	"pictor/internal/repository"
	"pictor/pkg/domain"
)

type counter interface {
	Kind() domain.EntityType
	Count(ctx context.Context, sess domain.SessionContext) (int, error)
}

func (s *store) counters() []counter {
	r := s.repos
	return []counter{r.Drones, r.Flights, r.FlightPlans, r.Projects, r.ProjectPix4ds, r.GutmaLinks, r.Thumbnails}
}

type statsReport struct {
	User    string                    `json:"user"`
	Counts  map[domain.EntityType]int `json:"counts"`
	Flights repository.FlightSummary  `json:"flights"`
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "stats",
		GroupID: "read",
		Short:   "Count the live records of the session user",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			report := statsReport{User: s.sess.UserUUID, Counts: make(map[domain.EntityType]int)}
			for _, c := range s.counters() {
				n, err := c.Count(ctx, s.sess)
				if err != nil {
					return fmt.Errorf("count %s: %w", c.Kind(), err)
				}
				report.Counts[c.Kind()] = n
			}
			if report.Flights, err = s.repos.Flights.Summary(ctx, s.sess); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "user\t%s\n", report.User)
			for _, c := range s.counters() {
				fmt.Fprintf(tw, "%s\t%d\n", c.Kind(), report.Counts[c.Kind()])
			}
			fmt.Fprintf(tw, "flight time\t%s\n", time.Duration(report.Flights.TotalDuration*float64(time.Second)))
			fmt.Fprintf(tw, "flight distance\t%.0f m\n", report.Flights.TotalDistance)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

type pendingFunc func(ctx context.Context, sess domain.SessionContext, since time.Time) ([]string, error)

func pendingOf[T domain.Entity](r *repository.Repository[T]) pendingFunc {
	return func(ctx context.Context, sess domain.SessionContext, since time.Time) ([]string, error) {
		items, err := r.PendingSync(ctx, sess, since)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.Sync().UUID)
		}
		return ids, nil
	}
}

func newPendingCmd(a *app) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:     "pending",
		GroupID: "read",
		Short:   "List the records the synchronizer still has to push",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var from time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				from = t
			}
			ctx := cmd.Context()
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			r := s.repos
			entities := []struct {
				kind domain.EntityType
				fn   pendingFunc
			}{
				{domain.EntityDrone, pendingOf(r.Drones.Repository)},
				{domain.EntityFlight, pendingOf(r.Flights.Repository)},
				{domain.EntityFlightPlan, pendingOf(r.FlightPlans.Repository)},
				{domain.EntityProject, pendingOf(r.Projects.Repository)},
				{domain.EntityProjectPix4d, pendingOf(r.ProjectPix4ds.Repository)},
				{domain.EntityGutmaLink, pendingOf(r.GutmaLinks.Repository)},
				{domain.EntityThumbnail, pendingOf(r.Thumbnails.Repository)},
			}
			out := cmd.OutOrStdout()
			for _, e := range entities {
				ids, err := e.fn(ctx, s.sess, from)
				if err != nil {
					return fmt.Errorf("pending %s: %w", e.kind, err)
				}
				for _, id := range ids {
					fmt.Fprintf(out, "%s\t%s\n", e.kind, id)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "also list synced records updated after this RFC3339 time")
	return cmd
}

func newProjectsCmd(a *app) *cobra.Command {
	var like string
	cmd := &cobra.Command{
		Use:     "projects",
		GroupID: "read",
		Short:   "List project titles, most recently updated first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			var titles []string
			if like != "" {
				titles, err = s.repos.Projects.GetTitles(ctx, s.sess, like, nil)
			} else {
				titles, err = s.repos.Projects.GetAllTitles(ctx, s.sess)
			}
			if err != nil {
				return err
			}
			for _, t := range titles {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&like, "like", "", "only titles containing this text, ignoring case and accents")
	return cmd
}

func follow[T domain.Entity](ctx context.Context, w *repository.Watcher[T], kind domain.EntityType, out io.Writer) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-w.C():
			if !ok {
				return
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", kind, n.Kind, strings.Join(n.UUIDs, ","))
		}
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "watch <entity>",
		GroupID:   "read",
		Short:     "Print the changes committed to an entity until interrupted",
		Args:      cobra.ExactArgs(1),
		ValidArgs: entityNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.EntityType(args[0])
			if !slices.Contains(domain.AllEntities, kind) {
				return fmt.Errorf("unknown entity %q (one of %s)", args[0], strings.Join(entityNames(), ", "))
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if a.cfgPath != "" {
				config.Watch(a.v, func(cfg config.Config) {
					if err := a.log.SetLevel(cfg.Log.Level); err != nil {
						a.log.Warn(ctx, "ignoring log level", "level", cfg.Log.Level, "error", err)
						return
					}
					a.log.Info(ctx, "log level reloaded", "level", cfg.Log.Level)
				}, func(err error) {
					a.log.Warn(ctx, "ignoring invalid config change", "error", err)
				})
			}

			out := cmd.OutOrStdout()
			r := s.repos
			switch kind {
			case domain.EntityDrone:
				follow(ctx, r.Drones.Watch(), kind, out)
			case domain.EntityFlight:
				follow(ctx, r.Flights.Watch(), kind, out)
			case domain.EntityFlightPlan:
				follow(ctx, r.FlightPlans.Watch(), kind, out)
			case domain.EntityProject:
				follow(ctx, r.Projects.Watch(), kind, out)
			case domain.EntityProjectPix4d:
				follow(ctx, r.ProjectPix4ds.Watch(), kind, out)
			case domain.EntityGutmaLink:
				follow(ctx, r.GutmaLinks.Watch(), kind, out)
			case domain.EntityThumbnail:
				follow(ctx, r.Thumbnails.Watch(), kind, out)
			case domain.EntityUser:
				follow(ctx, r.Users.Watch(), kind, out)
			case domain.EntitySession:
				follow(ctx, r.Sessions.Watch(), kind, out)
			}
			return nil
		},
	}
}

func entityNames() []string {
	names := make([]string, 0, len(domain.AllEntities))
	for _, e := range domain.AllEntities {
		names = append(names, string(e))
	}
	return names
}

func newPurgeUserCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "purge-user <uuid>",
		GroupID: "maintenance",
		Short:   "Hard-delete every record owned by a user",
		Long: `Hard-delete every record owned by a user, the user row included.

Sessions pointing at the user are kept but detached; the next session start
attaches them to a new anonymous user. Nothing is sent to the cloud.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			report := s.c.DeleteUserData(ctx, args[0])
			if len(report.Applied) == 0 {
				return fmt.Errorf("purge of user %s failed, see the log", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged user %s\n", args[0])
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		GroupID: "maintenance",
		Short:   "Apply pending schema migrations to the configured store",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := core.OpenPersistentStore(cmd.Context(), a.cfg.Storage, core.NewDefaultRulesEngine())
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s storage is up to date\n", a.cfg.Storage.Driver)
			return nil
		},
	}
}
