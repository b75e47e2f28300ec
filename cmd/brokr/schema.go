package main

import (
	"context"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [table]",
	Short: "List columns for a database, or for one table",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchema,
}

var flagSchemaDB string

func init() {
	schemaCmd.Flags().StringVar(&flagSchemaDB, "db", "", "database alias (omit to use the default)")
}

func runSchema(cmd *cobra.Command, args []string) error {
	table := ""
	if len(args) == 1 {
		table = args[0]
	}

	b := newBroker("cli.schema")
	defer b.Close()

	schema, err := b.GetSchema(context.Background(), table, flagSchemaDB)
	if err != nil {
		return err
	}
	return printJSON(schema)
}
