// Package seedr generates fake rows and inserts them through the broker,
// so seeding goes through the same permission and audit path as any other
// write.
package seedr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"gopkg.in/yaml.v3"

	"github.com/vaibhaw-/BrokR/internal/brokr/broker"
	"github.com/vaibhaw-/BrokR/internal/brokr/logger"
)

type ColumnSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// SeedConfig describes one seeding run, parsed from YAML.
type SeedConfig struct {
	Table   string       `yaml:"table"`
	DBAlias string       `yaml:"db_alias"`
	Rows    int          `yaml:"rows"`
	Seed    int64        `yaml:"seed"`
	Columns []ColumnSpec `yaml:"columns"`
}

func ReadSeedConfig(path string) (SeedConfig, error) {
	var cfg SeedConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse seed config: %w", err)
	}
	if cfg.Table == "" || len(cfg.Columns) == 0 {
		return cfg, fmt.Errorf("seed config needs 'table' and at least one column")
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 100
	}
	if !isIdentifier(cfg.Table) {
		return cfg, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	for _, col := range cfg.Columns {
		if !isIdentifier(col.Name) {
			return cfg, fmt.Errorf("invalid column name %q", col.Name)
		}
	}
	return cfg, nil
}

// Run inserts cfg.Rows fake rows one statement at a time and returns the
// total affected count.
func Run(ctx context.Context, b *broker.Broker, cfg SeedConfig) (int64, error) {
	// deterministic data if seed provided
	gofakeit.Seed(cfg.Seed)

	names := make([]string, len(cfg.Columns))
	placeholders := make([]string, len(cfg.Columns))
	for i, col := range cfg.Columns {
		names[i] = col.Name
		placeholders[i] = ":" + col.Name
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		cfg.Table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	var total int64
	for i := 0; i < cfg.Rows; i++ {
		params := make(map[string]interface{}, len(cfg.Columns))
		for _, col := range cfg.Columns {
			params[col.Name] = fakeValue(col.Kind)
		}
		affected, err := b.RunExecute(ctx, sqlText, params, cfg.DBAlias)
		if err != nil {
			return total, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		total += affected
	}
	logger.L().Infow("seeding complete", "table", cfg.Table, "rows", total)
	return total, nil
}

// fakeValue maps a column kind from the seed spec onto a generator.
// Unknown kinds fall back to a random word.
func fakeValue(kind string) interface{} {
	switch kind {
	case "uuid":
		return gofakeit.UUID()
	case "name":
		return gofakeit.Name()
	case "first_name":
		return gofakeit.FirstName()
	case "last_name":
		return gofakeit.LastName()
	case "email":
		return gofakeit.Email()
	case "phone":
		return gofakeit.Phone()
	case "city":
		return gofakeit.City()
	case "country":
		return gofakeit.Country()
	case "sentence":
		return gofakeit.Sentence(8)
	case "int":
		return gofakeit.Number(0, 1_000_000)
	case "float":
		return gofakeit.Float64Range(0, 10_000)
	case "bool":
		return gofakeit.Bool()
	case "date":
		return gofakeit.Date().UTC().Format("2006-01-02 15:04:05")
	case "status":
		return gofakeit.RandomString([]string{"active", "inactive", "pending"})
	default:
		return gofakeit.Word()
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
