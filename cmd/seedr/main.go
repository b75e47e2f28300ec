package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/vaibhaw-/BrokR/internal/brokr/audit"
	"github.com/vaibhaw-/BrokR/internal/brokr/broker"
	"github.com/vaibhaw-/BrokR/internal/brokr/config"
	"github.com/vaibhaw-/BrokR/internal/brokr/logger"
	seedr "github.com/vaibhaw-/BrokR/internal/seedr"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to broker config file")
	specPath := flag.String("spec", "", "Path to seed spec file (required)")
	flag.Usage = printHelp
	flag.Parse()

	if *specPath == "" {
		fmt.Println("Error: --spec is required")
		printHelp()
		os.Exit(1)
	}

	viper.SetConfigFile(*configPath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not read config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if err := config.Load(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(config.Get().Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := seedr.ReadSeedConfig(*specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rec := audit.NewRecorder(config.Get().Audit)
	if !rec.Enabled() {
		logger.L().Warnw("audit logging is disabled; seeded writes will not be recorded")
	}
	b := broker.New(rec, "seedr")
	defer b.Close()

	total, err := seedr.Run(context.Background(), b, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (inserted %d rows before failing)\n", err, total)
		os.Exit(1)
	}
	fmt.Printf("Inserted %d rows into %s\n", total, cfg.Table)
}

func printHelp() {
	fmt.Println(`Usage: seedr --spec <seed.yaml> [--config <config.yaml>]`)
	fmt.Println()
	fmt.Println("Seeds a table with fake rows through the broker, honoring the")
	fmt.Println("target database's permission tier and audit trail.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --spec     seed spec: table, db_alias, rows, seed, columns")
	fmt.Println("  --config   broker config file (default ./config.yaml)")
}
