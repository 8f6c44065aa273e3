package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/app"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/config"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/domain"
	"github.com/RobiinJonsson/marketdata-dashboard-go/internal/util"
)

// cli carries state shared by every subcommand for one invocation.
type cli struct {
	baseURL   string
	container *app.Container
	logger    *zap.Logger
}

// newRootCmd returns the command tree and its shared state. The caller must call teardown
// once Execute returns.
func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:          "refdata",
		Short:        "Query the financial reference-data API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.baseURL, "base-url", "", "API base URL (overrides API_BASE_URL)")

	rootCmd.AddCommand(
		c.profileCmd(),
		c.entityCmd(),
		c.instrumentsCmd(),
		c.venuesCmd(),
		c.entitiesCmd(),
		c.cacheCmd(),
	)
	return rootCmd, c
}

func (c *cli) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.baseURL != "" {
		cfg.API.BaseURL = strings.TrimRight(c.baseURL, "/")
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --base-url: %w", err)
		}
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	container, err := app.Build(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return fmt.Errorf("failed to assemble data access layer: %w", err)
	}

	c.logger = logger
	c.container = container
	return nil
}

func (c *cli) teardown() {
	if c == nil {
		return
	}
	c.container.Close()
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// signalContext cancels on SIGINT/SIGTERM so in-flight lookups are aborted.
func (c *cli) signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type batchEntry struct {
	ISIN    string                    `json:"isin"`
	Profile *domain.AggregatedProfile `json:"profile,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func (c *cli) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <isin>...",
		Short: "Aggregate instrument, transparency, venue and entity data for one or more ISINs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			if len(args) == 1 {
				profile, err := c.container.Aggregator.Profile(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, profile)
			}

			results := c.container.Aggregator.ProfileMany(ctx, args)
			entries := make([]batchEntry, 0, len(results))
			for _, r := range results {
				entry := batchEntry{ISIN: r.ISIN, Profile: r.Profile}
				if r.Err != nil {
					entry.Error = r.Err.Error()
				}
				entries = append(entries, entry)
			}
			return writeJSON(cmd, entries)
		},
	}
}

func (c *cli) entityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <lei>",
		Short: "Show a legal entity with its relationship tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			entity, tree, err := c.container.Aggregator.Entity(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, struct {
				Entity        *domain.LegalEntity      `json:"entity,omitempty"`
				Relationships *domain.RelationshipTree `json:"relationships,omitempty"`
			}{entity, tree})
		},
	}
}

func (c *cli) instrumentsCmd() *cobra.Command {
	var filter domain.InstrumentFilter

	cmd := &cobra.Command{
		Use:   "instruments",
		Short: "List instruments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			items, err := c.container.Instruments.List(ctx, filter)
			if err != nil {
				return err
			}
			return writeJSON(cmd, items)
		},
	}
	cmd.Flags().StringVar(&filter.Type, "type", "", "instrument type")
	cmd.Flags().StringVar(&filter.Currency, "currency", "", "currency code")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of results")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of results to skip")
	return cmd
}

func (c *cli) venuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "venues [mic]",
		Short: "List trading venues, or show one by MIC",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			if len(args) == 1 {
				venue, err := c.container.Venues.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, venue)
			}

			venues, err := c.container.Venues.List(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, venues)
		},
	}
}

func (c *cli) entitiesCmd() *cobra.Command {
	var filter domain.LegalEntityFilter

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Search legal entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			entities, err := c.container.LegalEntities.List(ctx, filter)
			if err != nil {
				return err
			}
			return writeJSON(cmd, entities)
		},
	}
	cmd.Flags().StringVar(&filter.Name, "name", "", "entity name")
	cmd.Flags().StringVar(&filter.Jurisdiction, "jurisdiction", "", "jurisdiction code")
	cmd.Flags().StringVar(&filter.Status, "status", "", "entity status")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of results")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of results to skip")
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear [pattern]",
		Short: "Remove cached responses whose key contains pattern, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}

			removed, err := c.container.Client.ClearCache(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached responses\n", removed)
			return nil
		},
	}

	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}
