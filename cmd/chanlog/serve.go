package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/chanlog/internal/backup"
	"github.com/tinytelemetry/chanlog/internal/duckdb"
	"github.com/tinytelemetry/chanlog/internal/httpserver"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP query API and run retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.runServer(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("api-addr", "", "HTTP listen address (default 127.0.0.1:3000)")
	return cmd
}

// runServer serves the API until ctx is cancelled.
func (a *app) runServer(ctx context.Context, out io.Writer) error {
	store, err := a.openReadyStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	// Start retention cleaner for automatic log expiry
	retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
		RetentionDays: a.cfg.LogRetention,
		Interval:      a.cfg.RetentionInterval,
		Logger:        a.diag,
	})
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	// Periodic snapshots when a backup directory is configured.
	var snapshots *backup.Manager
	if a.cfg.BackupDir != "" {
		snapshots, err = backup.New(store, backup.Config{
			Interval: a.cfg.BackupInterval,
			Dir:      a.cfg.BackupDir,
			KeepLast: a.cfg.BackupKeep,
			Logger:   a.diag,
		})
		if err != nil {
			return err
		}
		snapshots.Start()
		defer snapshots.Stop()
	}

	apiServer := httpserver.NewServer(a.cfg.APIAddr, store, a.diag)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	printStartupBanner(out, a.cfg, retentionCleaner != nil, snapshots != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(out, "\nShutting down gracefully...")

		stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		done := make(chan error, 1)
		go func() { done <- apiServer.Stop() }()
		select {
		case err := <-done:
			return err
		case <-stopCtx.Done():
			return fmt.Errorf("shutdown timed out")
		}
	})

	if err := g.Wait(); err != nil {
		a.diag.Error("server stopped with error", "error", err)
		return err
	}
	return nil
}

func printStartupBanner(w io.Writer, cfg appConfig, retention, snapshots bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("chanlog")+" "+dim.Render("v"+version))
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    API"), "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, fmt.Sprintf("    %s  Database       %s", check, dim.Render(shortenPath(cfg.DBPath))))
	lines = append(lines, fmt.Sprintf("    %s  Timezone       %s", check, dim.Render(cfg.Timezone)))
	if retention {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", check, dim.Render(fmt.Sprintf("%d days, every %s", cfg.LogRetention, cfg.RetentionInterval))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", dot, dim.Render("disabled")))
	}
	if snapshots {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", check, dim.Render(shortenPath(cfg.BackupDir))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write one database snapshot into the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.BackupDir == "" {
				return fmt.Errorf("no backup directory: pass --backup-dir or set backup-dir")
			}
			ctx := cmd.Context()
			store, err := a.openReadyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			m, err := backup.New(store, backup.Config{
				Dir:      a.cfg.BackupDir,
				KeepLast: a.cfg.BackupKeep,
				Logger:   a.diag,
			})
			if err != nil {
				return err
			}
			defer m.Stop()

			path, err := m.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("backup-dir", "", "directory for snapshots")
	cmd.Flags().Int("backup-keep", 0, "snapshots to keep (default 24)")
	return cmd
}
