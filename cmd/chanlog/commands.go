package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/chanlog/internal/channel"
	"github.com/tinytelemetry/chanlog/internal/duckdb"
	"github.com/tinytelemetry/chanlog/internal/hostctx"
	"github.com/tinytelemetry/chanlog/internal/logparse"
	"github.com/tinytelemetry/chanlog/internal/model"
	"github.com/tinytelemetry/chanlog/internal/output"
	"github.com/tinytelemetry/chanlog/internal/processor"
	"github.com/tinytelemetry/chanlog/internal/sink"
)

// scopeFlags selects a single site or the whole network.
type scopeFlags struct {
	site    int64
	network bool
}

func (s *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&s.site, "site", 0, "only records from this site id (default: configured site-id)")
	cmd.Flags().BoolVar(&s.network, "network", false, "records from every site")
	cmd.MarkFlagsMutuallyExclusive("site", "network")
}

// siteID resolves the scope to a site filter; nil means no filter.
func (s *scopeFlags) siteID(cmd *cobra.Command, cfg appConfig) *int64 {
	switch {
	case s.network:
		return nil
	case cmd.Flags().Changed("site"):
		return hostctx.Ptr(s.site)
	case cfg.SiteID > 0:
		return hostctx.Ptr(cfg.SiteID)
	}
	return nil
}

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Create or upgrade the log table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openReadyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			current, _, err := store.SchemaStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d in %s\n", current, a.cfg.DBPath)
			return nil
		},
	}
}

func newListChannelsCmd(a *app) *cobra.Command {
	var (
		scope  scopeFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "list-channels",
		Short: "List channels with record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openReadyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			channels, err := store.FindChannels(ctx, model.Query{SiteID: scope.siteID(cmd, a.cfg)})
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), format, output.ChannelRows(channels))
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&format, "format", output.FormatTable, "table|json|csv|yaml|count")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		scope  scopeFlags
		format string
		fields []string
		level  string
		q      model.Query
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List log records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if level != "" {
				lvl, err := logparse.ParseLevel(level)
				if err != nil {
					return err
				}
				q.Level = lvl
			}
			q.SiteID = scope.siteID(cmd, a.cfg)

			ctx := cmd.Context()
			store, err := a.openReadyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.FindByQuery(ctx, q)
			if err != nil {
				return err
			}
			rows, err := output.RecordRows(records, fields)
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), format, rows)
		},
	}

	f := cmd.Flags()
	scope.register(cmd)
	f.StringVar(&format, "format", output.FormatTable, "table|csv|ids|json|count|yaml")
	f.StringSliceVar(&fields, "fields", nil, "comma-separated fields (default id,channel,level_name,message,created_at)")
	f.StringVar(&q.Channel, "channel", "", "exact channel")
	f.StringVar(&q.Message, "message", "", "case-insensitive message substring")
	f.StringVar(&level, "level", "", "exact level, numeric or by name")
	f.StringVar(&q.LevelName, "level-name", "", "exact stored level name")
	f.StringVar(&q.After, "after", "", "records at or after this time (e.g. 2024-01-02, '2 hours ago')")
	f.StringVar(&q.Before, "before", "", "records at or before this time")
	f.StringVar(&q.OrderBy, "order-by", "id", "id|channel|level|level_name|message|created_at|created_at_gmt")
	f.StringVar(&q.Order, "order", "DESC", "ASC|DESC")
	f.IntVar(&q.PerPage, "per-page", model.DefaultPerPage, "records per page, -1 for all")
	f.IntVar(&q.Paged, "paged", 1, "page number")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			ctx := cmd.Context()
			store, err := a.openReadyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(ctx, id)
			if errors.Is(err, duckdb.ErrNotFound) {
				return fmt.Errorf("record %d not found", id)
			}
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	var (
		scope  scopeFlags
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "purge-records [max-age-days]",
		Short: "Delete records older than max-age-days (default 90)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := model.DefaultPurgeDays
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid max-age-days %q", args[0])
				}
				days = n
			}

			ctx := cmd.Context()
			store, err := a.openReadyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := duckdb.Purge(ctx, store, a.loc, duckdb.PurgeOptions{
				MaxAgeDays: days,
				DryRun:     dryRun,
				SiteID:     scope.siteID(cmd, a.cfg),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Would delete %d records created before %s.\n", res.Matched, res.Before)
				return nil
			}
			fmt.Fprintf(out, "Deleted %d records created before %s.\n", res.Deleted, res.Before)
			return nil
		},
	}
	scope.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count matching records without deleting")
	return cmd
}

func newLogCmd(a *app) *cobra.Command {
	var contextJSON, extraJSON string
	cmd := &cobra.Command{
		Use:   "log <channel> <level> <message>",
		Short: "Write one record through the channel pipeline",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logparse.ParseLevel(args[1])
			if err != nil {
				return err
			}
			fields, err := parseObject("context", contextJSON)
			if err != nil {
				return err
			}
			extra, err := parseObject("extra", extraJSON)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			registry := channel.NewRegistry(channel.NewFactory(channel.FactoryConfig{
				Store:         store,
				DatabaseLevel: a.cfg.dbLevel,
				Interpolate:   a.cfg.Interpolate,
				Host:          hostctx.NewStatic(hostBase(a.cfg)),
				ConsoleOut:    cmd.OutOrStdout(),
				ConsoleErr:    cmd.ErrOrStderr(),
				ConsoleLevel:  a.cfg.consoleLevel,
				Formatter:     sink.LineFormatter{Location: a.loc},
				Diagnostics:   a.diag,
			}))
			if len(extra) > 0 {
				registry.OnInit(func(l *channel.Logger) {
					l.AddProcessor(mergeExtra(extra))
				})
			}

			logger, err := registry.Get(ctx, args[0])
			if err != nil {
				return err
			}
			logger.Log(ctx, level, args[2], fields)
			return nil
		},
	}
	cmd.Flags().StringVar(&contextJSON, "context", "", "context as a JSON object")
	cmd.Flags().StringVar(&extraJSON, "extra", "", "extra fields as a JSON object")
	return cmd
}

func parseObject(name, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", name, err)
	}
	return m, nil
}

// mergeExtra adds fixed keys to every record's extra. It runs after host
// enrichment, so keys owned by the host context are left to it.
func mergeExtra(extra map[string]any) processor.Processor {
	return processor.Func(func(_ context.Context, rec model.Record) model.Record {
		merged := make(map[string]any, len(rec.Extra)+len(extra))
		maps.Copy(merged, rec.Extra)
		for k, v := range extra {
			if slices.Contains(hostctx.Keys, k) {
				continue
			}
			merged[k] = v
		}
		rec.Extra = merged
		return rec
	})
}

// hostBase is the process-level host context for records written by this
// binary.
func hostBase(cfg appConfig) hostctx.HostContext {
	h := hostctx.HostContext{
		DoingCron: hostctx.Ptr(false),
		DoingAjax: hostctx.Ptr(false),
		DoingREST: hostctx.Ptr(false),
		IsAdmin:   hostctx.Ptr(false),
	}
	if cfg.Environment != "" {
		h.Environment = hostctx.Ptr(cfg.Environment)
	}
	if cfg.SiteID > 0 {
		h.SiteID = hostctx.Ptr(cfg.SiteID)
	}
	if cfg.NetworkID > 0 {
		h.NetworkID = hostctx.Ptr(cfg.NetworkID)
	}
	return h
}
