// @title Newsdesk API
// @version 1.0
// @description News content management API.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"fmt"
	"os"

	"github.com/newsdesk/internal/config"
	"github.com/newsdesk/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "newsdesk",
	Short:         "News content management API server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/toml/json); NEWSDESK_* env vars override it")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, createAdminCmd)
}

// bootstrap 读取配置并构建日志器，所有子命令共用。
func bootstrap() (config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
