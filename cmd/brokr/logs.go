package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/vaibhaw-/BrokR/internal/brokr/audit"
	"github.com/vaibhaw-/BrokR/internal/brokr/config"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Filter and print audit records as NDJSON",
	RunE:  runLogs,
}

var (
	flagLogsDB      string
	flagLogsOutcome string
	flagLogsKind    string
	flagLogsFrom    string
	flagLogsTo      string
	flagLogsLimit   int
)

func init() {
	logsCmd.Flags().StringVar(&flagLogsDB, "db", "", "filter by database alias")
	logsCmd.Flags().StringVar(&flagLogsOutcome, "outcome", "", "filter by outcome (success|error)")
	logsCmd.Flags().StringVar(&flagLogsKind, "kind", "", "filter by statement kind (read|write|destructive)")
	logsCmd.Flags().StringVar(&flagLogsFrom, "from", "", "records at or after this time (flexible format)")
	logsCmd.Flags().StringVar(&flagLogsTo, "to", "", "records at or before this time (flexible format)")
	logsCmd.Flags().IntVar(&flagLogsLimit, "limit", 0, "stop after this many records (0 = all)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	filters, err := buildLogFilters()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	matched := 0
	skipped := 0
	for result := range audit.ReadRecords(ctx, config.Get().Audit.Dir) {
		if result.Err != nil {
			skipped++
			continue
		}
		if !audit.MatchAll(result.Record, filters) {
			continue
		}
		if err := printNDJSON(result.Record); err != nil {
			return err
		}
		matched++
		if flagLogsLimit > 0 && matched >= flagLogsLimit {
			break
		}
	}
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d malformed lines\n", skipped)
	}
	return nil
}

func printNDJSON(v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(line))
	return err
}

func buildLogFilters() ([]audit.Filter, error) {
	var filters []audit.Filter
	if flagLogsDB != "" {
		filters = append(filters, audit.ByAlias(flagLogsDB))
	}
	if flagLogsOutcome != "" {
		filters = append(filters, audit.ByOutcome(flagLogsOutcome))
	}
	if flagLogsKind != "" {
		filters = append(filters, audit.ByKind(flagLogsKind))
	}
	if flagLogsFrom != "" {
		t, err := dateparse.ParseAny(flagLogsFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid --from time %q: %w", flagLogsFrom, err)
		}
		filters = append(filters, audit.After(t))
	}
	if flagLogsTo != "" {
		t, err := dateparse.ParseAny(flagLogsTo)
		if err != nil {
			return nil, fmt.Errorf("invalid --to time %q: %w", flagLogsTo, err)
		}
		filters = append(filters, audit.Before(t))
	}
	return filters, nil
}
