package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/surgehq/surge/internal/client"
	"github.com/surgehq/surge/internal/config"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/log"
)

// These global variables can be configured with the corresponding lowercase flag
var (
	Verbose   string // Verbose defines the logging level, either trace, debug, info, error, fatal
	Output    string // Output defines the log format, either pretty, text, json
	ServerURL string // ServerURL is where the service of the client commands lives

	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "surge",
	Short: "surge fires http requests at a target at a fixed rate",
	Long: `surge is a load testing service. Load tests are defined once and started, stopped and
inspected through its api. Every run is hosted in an isolated worker that paces requests
at the configured rate and reports latency percentiles, status codes and error kinds`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errors2.PrintError(err, 0)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.surge.yaml)")

	rootCmd.PersistentFlags().StringVarP(&Verbose, "verbose", "v", "info", "level of logging verbosity. can be error,info,debug,trace")
	rootCmd.PersistentFlags().StringVarP(&Output, "output", "o", "pretty", "log format. can be json,text,pretty")
	rootCmd.PersistentFlags().StringVar(&ServerURL, "server", client.DefaultURL, "url of the surge service")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))
}

func initLogging() {
	if err := log.SetFormat(cfg.Output); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logging")
	}
	if cfg.Verbose != "" {
		if err := log.SetLevelString(cfg.Verbose); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize logging")
		}
	}
	log.Debug().Str("level", cfg.Verbose).Str("format", cfg.Output).Msg("custom log settings")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	if err := config.ReadFile(v, cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "failed to read config file:", err)
		os.Exit(1)
	}
	if v.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}

	var err error
	if cfg, err = config.Load(v); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
}

// newClient creates the api client for the configured server
func newClient() (*client.Client, error) {
	return client.New(cfg.Server.URL)
}
