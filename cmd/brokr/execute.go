package main

import (
	"context"

	"github.com/spf13/cobra"
)

var executeCmd = &cobra.Command{
	Use:   "execute <sql>",
	Short: "Run a write or destructive statement and print the affected-row count",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecute,
}

var (
	flagExecDB     string
	flagExecParams []string
)

func init() {
	executeCmd.Flags().StringVar(&flagExecDB, "db", "", "database alias (omit to use the default)")
	executeCmd.Flags().StringArrayVar(&flagExecParams, "param", nil, "named parameter as key=value (repeatable)")
}

func runExecute(cmd *cobra.Command, args []string) error {
	params, err := parseParams(flagExecParams)
	if err != nil {
		return err
	}

	b := newBroker("cli.execute")
	defer b.Close()

	affected, err := b.RunExecute(context.Background(), args[0], params, flagExecDB)
	if err != nil {
		return err
	}
	return printJSON(map[string]int64{"rows_affected": affected})
}
