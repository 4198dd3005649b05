package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"market_pulse/internal/modules/config"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			if cfg.Telegram.Token != "" {
				cfg.Telegram.Token = "***"
			}
			if cfg.Redis.Password != "" {
				cfg.Redis.Password = "***"
			}
			bs, err := yaml.Marshal(cfg)
			if err != nil {
				return errors.Wrap(err, "marshal config to yaml")
			}
			_, err = fmt.Fprint(os.Stdout, string(bs))
			return err
		},
	}
}
