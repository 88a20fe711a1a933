package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gosha-bot/internal/analytics"
	"gosha-bot/internal/config"
	"gosha-bot/internal/history"
	"gosha-bot/internal/logging"
	"gosha-bot/internal/storage"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gosha-bot",
		Short:         "Telegram group-chat persona bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBot(ctx)
		},
	}
	root.AddCommand(newForgetCmd(), newStatsCmd())
	return root
}

func newForgetCmd() *cobra.Command {
	var chatID int64
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Wipe stored conversations (all of them, or one chat with --chat)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			initOfflineLogging()
			st, err := config.LoadSection[config.Storage]()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := history.Open(ctx, storeOptions(st))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = store.Close() }()

			l := logging.L()
			if cmd.Flags().Changed("chat") {
				if err := store.Delete(ctx, chatID); err != nil {
					return err
				}
				l.Warn().Int64(logging.FieldChatID, chatID).Msg("conversation deleted")
				return nil
			}
			if err := store.Clear(ctx); err != nil {
				return err
			}
			l.Warn().Str("driver", st.StoreDriver).Msg("conversation store wiped")
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "only forget this chat ID")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var date string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the daily summary from the interaction journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			initOfflineLogging()
			st, err := config.LoadSection[config.Storage]()
			if err != nil {
				return err
			}
			day := time.Now().UTC()
			if date != "" {
				if day, err = time.Parse("2006-01-02", date); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			rec, err := storage.NewFileRecorder(st.JournalFilePath)
			if err != nil {
				return err
			}
			events, err := rec.LoadInteractions()
			if err != nil {
				return err
			}
			stats := analytics.AnalyzeDailyLogs(events, day)
			out := stats.GenerateReportSummary()
			if asJSON {
				if out, err = stats.ToJSON(); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to summarize, YYYY-MM-DD (default today, UTC)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func initOfflineLogging() {
	lc, err := config.LoadSection[config.Logging]()
	if err != nil {
		lc = &config.Logging{LogLevel: "info"}
	}
	logging.Init(logging.Config{Level: lc.LogLevel, Pretty: true, ServiceName: "gosha-bot"})
}

func storeOptions(st *config.Storage) history.Options {
	return history.Options{
		Driver:     st.StoreDriver,
		FilePath:   st.StoreFilePath,
		SQLitePath: st.SQLitePath,
		Redis: history.RedisOptions{
			Addr:     st.RedisAddr,
			Password: st.RedisPassword,
			DB:       st.RedisDB,
			Prefix:   st.RedisPrefix,
		},
	}
}
