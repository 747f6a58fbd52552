// Package cmd provides the command-line interface of frontpage.
//
// Configuration is read, in order of precedence, from command-line flags,
// FRONTPAGE_ prefixed environment variables (FRONTPAGE_SERVER_PORT,
// FRONTPAGE_CACHE_REDIS_ADDR, ...) and the configuration file. The file is
// given by --config, else by FRONTPAGE_CONFIG_FILE, else .frontpage.yml in
// the current directory.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "frontpage",
	Short: "Cached page assembly server driven by a setup tree",
	Long: `frontpage renders pages from a hierarchical setup tree, caches the
generated markup and finishes the non-cacheable fragments on every request.

Quick Start:
  frontpage serve                 Start the page server
  frontpage render /about         Render one page to stdout
  frontpage validate              Check configuration and setup
  frontpage version               Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .frontpage.yml, can also use FRONTPAGE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig selects the configuration file and enables environment
// overrides. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("FRONTPAGE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".frontpage")
	}

	viper.SetEnvPrefix("FRONTPAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// envKeys are bound explicitly so that environment overrides reach
// Unmarshal even when the key is absent from the file.
var envKeys = []string{
	"server.host", "server.port", "server.environment", "server.shutdown_timeout",
	"site.setup_file", "site.public_dir", "site.temp_dir", "site.locale", "site.abs_ref_prefix", "site.watch",
	"cache.backend", "cache.max_size", "cache.ttl",
	"cache.redis.addr", "cache.redis.password", "cache.redis.db", "cache.redis.prefix",
	"lock.backend", "lock.ttl", "lock.timeout",
	"security.enable_nonce", "security.csp_report_uri",
	"log.level", "log.format",
}

func bindEnv() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}
