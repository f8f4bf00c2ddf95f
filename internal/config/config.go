// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/theferrit32/gnomad-gks/internal/naming"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional here; each command validates its own
// required set after merging CLI flag overrides.
type Config struct {
	// Work unit identity
	Source  string `json:"source,omitempty" validate:"omitempty,oneof=exomes genomes"`
	Contig  string `json:"contig,omitempty"`
	Version string `json:"version,omitempty"`

	// Storage
	Bucket      string `json:"bucket,omitempty"`
	SeqRepoRoot string `json:"seqrepo_root,omitempty"`
	WorkDir     string `json:"work_dir,omitempty"`

	// Pipeline behavior
	Staged           bool     `json:"staged,omitempty"`
	SkipCount        bool     `json:"skip_count,omitempty"`
	ProgressInterval int      `json:"progress_interval,omitempty" validate:"gte=0"`
	StripFields      []string `json:"strip_fields,omitempty"`

	// Job platform
	Project          string   `json:"project,omitempty"`
	Region           string   `json:"region,omitempty"`
	Contigs          []string `json:"contigs,omitempty"`
	Image            string   `json:"image,omitempty"`
	ImageTag         string   `json:"image_tag,omitempty"`
	ImageRepo        string   `json:"image_repo,omitempty"`
	ImageVersionFile string   `json:"image_version_file,omitempty"`
	CPU              string   `json:"cpu,omitempty"`
	Memory           string   `json:"memory,omitempty"`
	TaskTimeoutHours int      `json:"task_timeout_hours,omitempty" validate:"gte=0,lte=24"`
	MaxRetries       int      `json:"max_retries,omitempty" validate:"gte=0"`
	DelaySeconds     int      `json:"delay_seconds,omitempty" validate:"gte=0"`
	Wait             bool     `json:"wait,omitempty"`
	DryRun           bool     `json:"dry_run,omitempty"`

	Verbose bool `json:"verbose,omitempty"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks field-level constraints shared by every command.
// Required-field checks happen per command after flag merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	for _, contig := range c.Contigs {
		if !naming.ValidContig(contig) {
			return fmt.Errorf("config error: invalid contig %q", contig)
		}
	}
	return nil
}

// ValidateAnnotate checks the fields the annotate command requires.
func (c *Config) ValidateAnnotate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Source == "" {
		return fmt.Errorf("config error: 'source' is required (exomes or genomes)")
	}
	if c.Contig == "" {
		return fmt.Errorf("config error: 'contig' is required")
	}
	if !naming.ValidContig(c.Contig) {
		return fmt.Errorf("config error: invalid contig %q", c.Contig)
	}
	if c.Bucket == "" {
		return fmt.Errorf("config error: 'bucket' is required")
	}
	if c.SeqRepoRoot == "" {
		return fmt.Errorf("config error: 'seqrepo_root' is required")
	}
	return nil
}

// ValidateSubmit checks the fields the submit command requires. Image
// resolvability is checked separately, before any submission side effect.
func (c *Config) ValidateSubmit() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Source == "" {
		return fmt.Errorf("config error: 'source' is required (exomes or genomes)")
	}
	if c.Bucket == "" {
		return fmt.Errorf("config error: 'bucket' is required")
	}
	if c.SeqRepoRoot == "" {
		return fmt.Errorf("config error: 'seqrepo_root' is required")
	}
	if !c.DryRun {
		if c.Project == "" {
			return fmt.Errorf("config error: 'project' is required")
		}
		if c.Region == "" {
			return fmt.Errorf("config error: 'region' is required")
		}
	}
	return nil
}
