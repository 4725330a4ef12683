package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	if cfg.Server.Port != 9175 {
		t.Errorf("expected default port 9175, got %d", cfg.Server.Port)
	}
	if !cfg.Query.ConstantFolding {
		t.Error("constant folding should be on by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Log.Level)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		shouldError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, true},
		{"negative timeout", func(c *Config) { c.Query.TimeoutSec = -1 }, true},
		{"invalid log level", func(c *Config) { c.Log.Level = "invalid" }, true},
		{"user without hash", func(c *Config) {
			c.Server.Users = []UserConfig{{Name: "admin"}}
		}, true},
		{"valid table", func(c *Config) {
			c.Tables = []TableConfig{{Name: "t", Format: "csv", Path: "t.csv"}}
		}, false},
		{"unknown format", func(c *Config) {
			c.Tables = []TableConfig{{Name: "t", Format: "xml", Path: "t.xml"}}
		}, true},
		{"missing path", func(c *Config) {
			c.Tables = []TableConfig{{Name: "t", Format: "csv"}}
		}, true},
		{"duplicate table", func(c *Config) {
			c.Tables = []TableConfig{
				{Name: "t", Format: "csv", Path: "a.csv"},
				{Name: "t", Format: "json", Path: "b.json"},
			}
		}, true},
		{"long delimiter", func(c *Config) {
			c.Tables = []TableConfig{{Name: "t", Format: "csv", Path: "t.csv", Delimiter: ";;"}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.shouldError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "csql.yaml")
	content := `
server:
  port: 9999
  host: 0.0.0.0
query:
  constant_folding: false
tables:
  - name: cities
    format: csv
    path: /data/cities.csv
    description: city populations
    columns:
      - name: id
        type: integer
log:
  level: debug
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != 9999 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Query.ConstantFolding {
		t.Error("constant_folding should be false")
	}
	if len(cfg.Tables) != 1 || cfg.Tables[0].Name != "cities" || cfg.Tables[0].Columns[0].Type != "integer" {
		t.Errorf("tables = %+v", cfg.Tables)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("CSQL_SERVER_PORT", "8081")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("expected port 8081 from the environment, got %d", cfg.Server.Port)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csql.yaml")
	tables := []TableConfig{{Name: "events", Format: "json", Path: "events.jsonl"}}
	if err := CreateDefaultConfig(path, tables); err != nil {
		t.Fatalf("CreateDefaultConfig: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	if cfg.Server.Port != 9175 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Tables) != 1 || cfg.Tables[0].Path != "events.jsonl" {
		t.Errorf("tables = %+v", cfg.Tables)
	}
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cities.csv")
	if err := os.WriteFile(csvPath, []byte("id;city\n1;berlin\n2;paris\n"), 0644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "events.jsonl")
	events := `{"id": 1, "tags": ["a", "b"]}
{"id": 2, "tags": []}
`
	if err := os.WriteFile(jsonPath, []byte(events), 0644); err != nil {
		t.Fatal(err)
	}

	repo := storage.NewTableRepository()
	err := LoadTables(repo, []TableConfig{
		{
			Name: "cities", Format: "csv", Path: csvPath, Delimiter: ";",
			Description: "city list",
			Columns:     []ColumnConfig{{Name: "id", Type: "string"}},
		},
		{
			Name: "events", Format: "json", Path: jsonPath,
			Columns: []ColumnConfig{
				{Name: "id", Type: "integer", Required: true},
				{Name: "tags", Type: "string", Repeated: true},
			},
		},
	}, nil)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}

	cities, ok := repo.Describe("cities")
	if !ok {
		t.Fatal("cities not registered")
	}
	if cities.Description != "city list" {
		t.Errorf("description = %q", cities.Description)
	}
	if col, _ := cities.ColumnByName("id"); col == nil || col.Type != catalog.TypeString {
		t.Errorf("declared column type not applied: %+v", col)
	}

	eventsInfo, ok := repo.Describe("events")
	if !ok {
		t.Fatal("events not registered")
	}
	if col, _ := eventsInfo.ColumnByName("tags"); col == nil || col.MaxRepetitionLevel != 1 {
		t.Errorf("tags should be repeated: %+v", col)
	}
}

func TestLoadTablesErrors(t *testing.T) {
	repo := storage.NewTableRepository()
	err := LoadTables(repo, []TableConfig{{Name: "missing", Format: "csv", Path: "/nonexistent/file.csv"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("expected load error naming the table, got %v", err)
	}

	err = LoadTables(repo, []TableConfig{{
		Name: "bad", Format: "json", Path: "x.json",
		Columns: []ColumnConfig{{Name: "a", Type: "blob"}},
	}}, nil)
	if err == nil {
		t.Error("expected error for unknown column type")
	}
}
