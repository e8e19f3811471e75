package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/chanlog/internal/channel"
	"github.com/tinytelemetry/chanlog/internal/hostctx"
	"github.com/tinytelemetry/chanlog/internal/ingest"
	"github.com/tinytelemetry/chanlog/internal/logparse"
	"github.com/tinytelemetry/chanlog/internal/logsource"
	"github.com/tinytelemetry/chanlog/internal/sink"
)

func newPipeCmd(a *app) *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "pipe <channel>",
		Short: "Log every line read from stdin",
		Long: "pipe reads stdin line by line. JSON objects may carry level, message, channel and context keys; " +
			"text lines may start with a level such as \"ERROR:\" or \"[warn]\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaultLevel, err := logparse.ParseLevel(level)
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

			src := logsource.New(ctx, "stdin", cmd.InOrStdin())
			defer src.Stop()
			parser := ingest.NewParser(defaultLevel)

			var count int
			emit := func(e ingest.Entry) error {
				name := args[0]
				if e.Channel != "" {
					name = e.Channel
				}
				logger, err := registry.Get(ctx, name)
				if err != nil {
					return err
				}
				logger.Log(ctx, e.Level, e.Message, e.Context)
				count++
				return nil
			}

			for line := range src.Lines() {
				if e, ok := parser.Feed(line); ok {
					if err := emit(e); err != nil {
						return err
					}
				}
			}
			if e, ok := parser.Flush(); ok {
				if err := emit(e); err != nil {
					return err
				}
			}
			if err := src.Err(); err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}

			a.diag.Debug("pipe finished", "lines", count, "channels", registry.Channels())
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "info", "level for lines that carry none")
	return cmd
}
