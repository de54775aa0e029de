// Package config loads the squarectl.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file squarectl looks for in the
// project root.
const DefaultFileName = "squarectl.yaml"

// Config holds all squarectl configuration.
type Config struct {
	// Python is the interpreter used to drive pip and the build backend.
	Python string `yaml:"python"`

	// Requirements and DevRequirements are the dependency manifests
	// consumed by the install and install-dev targets.
	Requirements    string `yaml:"requirements"`
	DevRequirements string `yaml:"dev_requirements"`

	// Formatter is the full formatter command line, e.g. "black .".
	Formatter string `yaml:"formatter"`

	// DistDir is where the build backend places release artifacts.
	DistDir string `yaml:"dist_dir"`

	// RepositoryURL overrides the upload tool's default package index.
	RepositoryURL string `yaml:"repository_url"`

	// Tools maps tool names to the minimum version squarectl accepts,
	// e.g. {"python": "3.8", "pre-commit": "2.20"}.
	Tools map[string]string `yaml:"tools"`

	// API configures the model API client. Environment variables take
	// precedence over these values.
	API APIConfig `yaml:"api"`
}

// APIConfig configures the model API client.
type APIConfig struct {
	URL       string `yaml:"url"`
	VerifySSL bool   `yaml:"verify_ssl"`
}

// Default returns the configuration used when no squarectl.yaml exists.
func Default() *Config {
	return &Config{
		Python:          "python3",
		Requirements:    "requirements.txt",
		DevRequirements: "requirements.dev.txt",
		Formatter:       "black .",
		DistDir:         "dist",
		Tools:           map[string]string{},
	}
}

// Load reads the configuration from path. An empty path means
// DefaultFileName; a missing file yields Default().
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Tools == nil {
		cfg.Tools = map[string]string{}
	}
	return cfg, nil
}

// Save writes the configuration to path. It refuses to overwrite an
// existing file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// O_EXCL makes the existence check and the create one atomic step.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists", path)
		}
		return fmt.Errorf("create config %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return f.Close()
}

// FormatterCommand splits the configured formatter command line into
// an executable name and its arguments.
func (c *Config) FormatterCommand() (name string, args []string, err error) {
	fields, err := shlex.Split(c.Formatter)
	if err != nil {
		return "", nil, fmt.Errorf("parse formatter command %q: %w", c.Formatter, err)
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("formatter command is empty")
	}
	return fields[0], fields[1:], nil
}

// CheckToolVersion reports an error when installed is older than the
// configured minimum for tool. Tools without a configured minimum
// always pass.
func (c *Config) CheckToolVersion(tool, installed string) error {
	min, ok := c.Tools[tool]
	if !ok || min == "" {
		return nil
	}
	canonMin := canonical(min)
	canonGot := canonical(installed)
	if !semver.IsValid(canonMin) {
		return fmt.Errorf("invalid minimum version %q for tool %s", min, tool)
	}
	if !semver.IsValid(canonGot) {
		return fmt.Errorf("cannot parse %s version %q", tool, installed)
	}
	if semver.Compare(canonGot, canonMin) < 0 {
		return fmt.Errorf("%s %s is older than required %s", tool, installed, min)
	}
	return nil
}

// canonical turns version strings like "23.1.2" into the "v"-prefixed
// form golang.org/x/mod/semver expects.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
