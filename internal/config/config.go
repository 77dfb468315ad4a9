// Package config loads the YAML run configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the options recognized in the YAML configuration file.
type Config struct {
	SZZName                  string   `yaml:"szz_name"`
	FileExtToParse           []string `yaml:"file_ext_to_parse"`
	OnlyDeletedLines         bool     `yaml:"only_deleted_lines"`
	IgnoreRevsFilePath       string   `yaml:"ignore_revs_file_path"`
	MaxChangeSize            int      `yaml:"max_change_size"`
	DetectMoveFromOtherFiles int      `yaml:"detect_move_from_other_files"`
	IssueDateFilter          bool     `yaml:"issue_date_filter"`
	RefactoringMinerPath     string   `yaml:"refactoring_miner_path"`
	Workers                  int      `yaml:"workers"`
}

// validSZZNames are the supported algorithm variants.
var validSZZNames = map[string]bool{
	"b": true, "ag": true, "ma": true, "r": true, "l": true, "ra": true,
}

// Load reads and validates the configuration file. Defaults are
// applied before unmarshalling so absent keys keep them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{
		OnlyDeletedLines:     true,
		MaxChangeSize:        20,
		RefactoringMinerPath: "RefactoringMiner",
		Workers:              1,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.MaxChangeSize <= 0 {
		cfg.MaxChangeSize = 20
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DetectMoveFromOtherFiles < 0 || cfg.DetectMoveFromOtherFiles > 3 {
		return nil, fmt.Errorf("detect_move_from_other_files must be 1, 2 or 3, got %d", cfg.DetectMoveFromOtherFiles)
	}
	return cfg, nil
}

// ValidSZZName reports whether name is a known variant.
func ValidSZZName(name string) bool {
	return validSZZNames[name]
}
