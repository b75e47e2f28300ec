package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a read statement and print rows as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var (
	flagQueryDB     string
	flagQueryParams []string
)

func init() {
	queryCmd.Flags().StringVar(&flagQueryDB, "db", "", "database alias (omit to use the default)")
	queryCmd.Flags().StringArrayVar(&flagQueryParams, "param", nil, "named parameter as key=value (repeatable)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	params, err := parseParams(flagQueryParams)
	if err != nil {
		return err
	}

	b := newBroker("cli.query")
	defer b.Close()

	rows, err := b.RunQuery(context.Background(), args[0], params, flagQueryDB)
	if err != nil {
		return err
	}
	return printJSON(rows)
}

// parseParams turns repeated key=value flags into the named-parameter map.
func parseParams(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", pair)
		}
		params[key] = value
	}
	return params, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
