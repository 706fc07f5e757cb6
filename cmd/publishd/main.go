package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-publish/pkg/simplepublish/config"
)

var version = "dev"

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.ServerConfig

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "publishd",
	Short:   "Content publishing server for articles, books and products",
	Long: `publishd stores cover images and PDFs in an object store, keeps
content records in a relational store and serves both over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogging(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (yaml, json, toml or .env)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded into the environment when present")
}

func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	opts := []config.Option{config.WithFile(configFile), config.WithEnv()}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetString("port")
		opts = append(opts, config.WithPort(port))
	}

	loaded, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return loaded, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
