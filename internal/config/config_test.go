package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"source": "genomes",
		"contig": "chr21",
		"bucket": "my-bucket",
		"seqrepo_root": "/seqrepo/latest",
		"delay_seconds": 5
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "genomes", cfg.Source)
	assert.Equal(t, "chr21", cfg.Contig)
	assert.Equal(t, "my-bucket", cfg.Bucket)
	assert.Equal(t, 5, cfg.DelaySeconds)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		path := writeConfig(t, `{not json`)
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty is valid", Config{}, false},
		{"valid source", Config{Source: "exomes"}, false},
		{"invalid source", Config{Source: "joint"}, true},
		{"negative delay", Config{DelaySeconds: -1}, true},
		{"negative retries", Config{MaxRetries: -2}, true},
		{"timeout too large", Config{TaskTimeoutHours: 25}, true},
		{"valid contigs", Config{Contigs: []string{"chr1", "chrX"}}, false},
		{"invalid contig", Config{Contigs: []string{"chr1", "chrZ"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAnnotate(t *testing.T) {
	valid := Config{
		Source:      "genomes",
		Contig:      "chr21",
		Bucket:      "b",
		SeqRepoRoot: "/seqrepo",
	}
	assert.NoError(t, valid.ValidateAnnotate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing source", func(c *Config) { c.Source = "" }},
		{"missing contig", func(c *Config) { c.Contig = "" }},
		{"bad contig", func(c *Config) { c.Contig = "21" }},
		{"missing bucket", func(c *Config) { c.Bucket = "" }},
		{"missing seqrepo", func(c *Config) { c.SeqRepoRoot = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.ValidateAnnotate())
		})
	}
}

func TestValidateSubmit(t *testing.T) {
	valid := Config{
		Source:      "genomes",
		Bucket:      "b",
		SeqRepoRoot: "/seqrepo",
		Project:     "my-project",
		Region:      "us-central1",
	}
	assert.NoError(t, valid.ValidateSubmit())

	t.Run("dry-run does not need project or region", func(t *testing.T) {
		cfg := valid
		cfg.Project = ""
		cfg.Region = ""
		cfg.DryRun = true
		assert.NoError(t, cfg.ValidateSubmit())
	})

	t.Run("missing project", func(t *testing.T) {
		cfg := valid
		cfg.Project = ""
		assert.Error(t, cfg.ValidateSubmit())
	})

	t.Run("missing source", func(t *testing.T) {
		cfg := valid
		cfg.Source = ""
		assert.Error(t, cfg.ValidateSubmit())
	})
}
