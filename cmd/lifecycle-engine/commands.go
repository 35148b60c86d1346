package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/database"
)

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Один прогон жизненного цикла",
		Long:  "Выполняет один прогон: переходы статусов, удаление по grace period,\nпересчёт снимков использования. Предназначен для внешнего планировщика (CronJob).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// SIGTERM прерывает прогон между файлами, начатые операции завершаются
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.lifecycle.RunSweep(ctx)
			if err != nil {
				c.logger.Error("Прогон завершён с ошибкой", slog.String("error", err.Error()))
				return errors.Join(err, printJSON(cmd.ErrOrStderr(), map[string]string{"error": err.Error()}))
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newCheckCostsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check-costs <user-id>",
		Short: "Проверка стоимости хранения пользователя относительно лимита плана",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.costs.CheckUserCosts(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newAnalyticsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics <user-id>",
		Short: "Аналитика хранилища пользователя: объёмы, стоимость, рекомендации",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.analytics.GetUserStorageAnalytics(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применение миграций БД",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return database.Migrate(c.cfg, c.logger)
		},
	}
}

func parseUserID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("неверный user-id %q: ожидается UUID", s)
	}
	return id.String(), nil
}

