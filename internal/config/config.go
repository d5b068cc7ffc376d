package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Box    Box    `yaml:"box"`
	Report Report `yaml:"report"`
	Output Output `yaml:"output"`
}

// Box identifies the remote spreadsheet and how to authenticate for it.
type Box struct {
	FileID string `yaml:"file_id"`
	UserID string `yaml:"user_id"`
	// ConfigJSON is the Box app-settings blob: either the raw JSON string
	// or a path to a JSON file.
	ConfigJSON string `yaml:"config_json"`
}

// Report configures the aggregation over the loaded sheet.
type Report struct {
	StatusColumn      string   `yaml:"status_column"`
	OwnerColumn       string   `yaml:"owner_column"`
	ClosingDateColumn string   `yaml:"closing_date_column"`
	Officer           string   `yaml:"officer"`
	Match             string   `yaml:"match"` // "exact" or "contains"
	FoldCase          bool     `yaml:"fold_case"`
	FocusStatuses     []string `yaml:"focus_statuses"`
	IncludeDetails    *bool    `yaml:"include_details"`
	Sheet             string   `yaml:"sheet"`
}

type Output struct {
	JSONPath string `yaml:"json_path"`
	HTMLPath string `yaml:"html_path"`
	DataDir  string `yaml:"data_dir"`
}

// MissingKeyError reports a required identifier that was supplied neither in
// the config file nor the environment.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required setting %s (set it in the config file or via the %s env var)", e.Key, e.Key)
}

// ConfigDir returns the XDG config directory for loanpulse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "loanpulse")
}

// DataDir returns the XDG data directory for loanpulse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "loanpulse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/loanpulse/config.yaml > ./config.yaml
// An empty result is valid: loanpulse can run from the embedded defaults
// plus environment variables alone, which is how the CI job drives it.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads the config file at path (or just the embedded defaults when
// path is empty) and overlays environment variables on top.
func Load(path string) (*Config, error) {
	data := DefaultConfigYAML
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		data = fileData
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Report.Match != "exact" && cfg.Report.Match != "contains" {
		return nil, fmt.Errorf("report.match must be \"exact\" or \"contains\", got %q", cfg.Report.Match)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	details := true
	return &Config{
		Report: Report{
			StatusColumn:      "Status",
			OwnerColumn:       "Loan Officer",
			ClosingDateColumn: "Closing Date",
			Match:             "exact",
			FocusStatuses:     []string{"Clearing Conditions", "Awaiting CTC"},
			IncludeDetails:    &details,
		},
		Output: Output{
			JSONPath: "data.json",
		},
	}
}

// applyEnv overlays the env vars the original reporting job was driven by,
// so a config file stays optional in CI.
func (c *Config) applyEnv() {
	setIfEnv(&c.Box.FileID, "BOX_FILE_ID")
	setIfEnv(&c.Box.UserID, "BOX_USER_ID")
	setIfEnv(&c.Box.ConfigJSON, "BOX_CONFIG_JSON")
	setIfEnv(&c.Report.Officer, "LO_NAME")
	setIfEnv(&c.Report.StatusColumn, "COL_STATUS")
	setIfEnv(&c.Report.OwnerColumn, "COL_LO")
	setIfEnv(&c.Report.ClosingDateColumn, "COL_CLOSING")
	setIfEnv(&c.Report.Sheet, "SHEET_NAME")
}

func setIfEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// ValidateRemote checks the identifiers a Box-backed run needs. Runs with a
// local --input file skip this entirely.
func (c *Config) ValidateRemote() error {
	if strings.TrimSpace(c.Box.FileID) == "" {
		return &MissingKeyError{Key: "BOX_FILE_ID"}
	}
	if strings.TrimSpace(c.Box.UserID) == "" {
		return &MissingKeyError{Key: "BOX_USER_ID"}
	}
	if strings.TrimSpace(c.Box.ConfigJSON) == "" {
		return &MissingKeyError{Key: "BOX_CONFIG_JSON"}
	}
	return nil
}

// IncludeDetails reports whether full matching rows should be emitted.
func (c *Config) IncludeDetails() bool {
	return c.Report.IncludeDetails == nil || *c.Report.IncludeDetails
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
