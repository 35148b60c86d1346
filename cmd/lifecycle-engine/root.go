package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/config"
)

// cli — конфигурация и логгер, общие для подкоманд.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "lifecycle-engine",
		Short:         "Движок жизненного цикла и стоимости хранения медиафайлов",
		Long:          "Переводит медиафайлы между классами хранения по тарифному плану владельца,\nудаляет файлы с истёкшим grace period и считает стоимость хранения.",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
				return err
			}
			c.cfg = cfg
			c.logger = config.SetupLogger(cfg)
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newSweepCmd(c),
		newCheckCostsCmd(c),
		newAnalyticsCmd(c),
		newMigrateCmd(c),
	)
	return root
}

// printJSON выводит результат подкоманды в stdout.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("вывод результата: %w", err)
	}
	return nil
}
