// Package cmd implements the sparkctl commands.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sparklab/sparklab-api/pkg/client"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "sparkctl",
	Short: "Command line client for the SparkLab API",
	Long: `sparkctl submits generations to a SparkLab API server and inspects
their results, the account plan and the available engines.

Configuration is read from flags, SPARKCTL_* environment variables and
$HOME/.sparkctl.yaml, in that order of precedence.

Examples:
  sparkctl login --email ada@example.com --password ...
  sparkctl generate --engine image_engine_a --type image --prompt "a cat" --wait
  sparkctl list --limit 10`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.sparkctl.yaml)")
	rootCmd.PersistentFlags().String("url", "http://127.0.0.1:8080", "API base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token")
	rootCmd.PersistentFlags().Bool("debug", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON")

	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".sparkctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SPARKCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func getClient() (*client.Client, error) {
	baseURL := viper.GetString("url")
	if baseURL == "" {
		return nil, fmt.Errorf("API URL not configured: set --url or SPARKCTL_URL")
	}
	return client.New(baseURL, viper.GetString("token")), nil
}

func requireToken() error {
	if viper.GetString("token") == "" {
		return fmt.Errorf("not logged in: run 'sparkctl login' and set SPARKCTL_TOKEN, or pass --token")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr.Message)
		if apiErr.Code == "LIMIT_REACHED" {
			fmt.Fprintln(os.Stderr, "Run 'sparkctl upgrade' to continue generating.")
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
