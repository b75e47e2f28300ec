package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaibhaw-/BrokR/internal/brokr/audit"
	"github.com/vaibhaw-/BrokR/internal/brokr/broker"
	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/logger"
)

var (
	cfgFile string
	Version = "v0.1"
	rootCmd = &cobra.Command{
		Use:   "brokr",
		Short: "BrokR - uniform access broker for heterogeneous databases",
		Long:  "BrokR: schema, query and execute against many databases through one interface, with permission tiers and an audit trail.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			} else {
				// default: ./config.yaml
				viper.SetConfigFile("config.yaml")
			}
			if err := viper.ReadInConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not read config (%v). Using defaults and flags.\n", err)
			}
			if err := config.Load(viper.GetViper()); err != nil {
				return err
			}

			if err := logger.InitLogger(config.Get().Logging.Level); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}

// newBroker builds the broker for one CLI invocation. Running with auditing
// off is legal but worth a trace in the log.
func newBroker(source string) *broker.Broker {
	rec := audit.NewRecorder(config.Get().Audit)
	if !rec.Enabled() {
		logger.L().Warnw("audit logging is disabled; requests will not be recorded")
	}
	return broker.New(rec, source)
}

func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
