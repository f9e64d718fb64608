// Package config loads scanner configuration from an optional YAML
// file with ${VAR} environment expansion. Every field has a default
// tuned for the campus Grubhub setup, so a missing file is not an
// error; the file exists to retarget the vendor heuristics and quota
// without rebuilding.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NickJuneau/mealmate-v2-web/internal/quota"
	"github.com/NickJuneau/mealmate-v2-web/internal/vendor"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds everything the command needs to run.
type Config struct {
	Vendor vendor.Profile

	// ResetDay is the weekday the meal plan replenishes on.
	ResetDay     time.Weekday
	MealsPerWeek int

	CredentialsPath string
	TokenPath       string

	// Scan defaults; flags may override per invocation.
	Days        int
	MaxResults  int64
	Concurrency int

	ListenAddr string
}

// rawConfig mirrors the YAML layout.
type rawConfig struct {
	Vendor struct {
		Name            string   `yaml:"name"`
		Senders         []string `yaml:"senders"`
		SubjectKeywords []string `yaml:"subject_keywords"`
		BodyKeywords    []string `yaml:"body_keywords"`
		Marks           []string `yaml:"marks"`
	} `yaml:"vendor"`
	Quota struct {
		ResetDay     string `yaml:"reset_day"`
		MealsPerWeek int    `yaml:"meals_per_week"`
	} `yaml:"quota"`
	Gmail struct {
		Credentials string `yaml:"credentials"`
		Token       string `yaml:"token"`
	} `yaml:"gmail"`
	Scan struct {
		Days        int   `yaml:"days"`
		MaxResults  int64 `yaml:"max_results"`
		Concurrency int   `yaml:"concurrency"`
	} `yaml:"scan"`
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
}

// Default returns the built-in configuration: the Grubhub profile, a
// Thursday-reset 7-meal week, and the dev-flow credential files in the
// working directory.
func Default() Config {
	return Config{
		Vendor:          vendor.Default(),
		ResetDay:        quota.DefaultResetDay,
		MealsPerWeek:    7,
		CredentialsPath: "credentials.json",
		TokenPath:       "token.json",
		Days:            7,
		MaxResults:      250,
		ListenAddr:      ":8080",
	}
}

// DefaultPath is where Load looks when the caller gives no path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mealmate.yaml"
	}
	return filepath.Join(home, ".mealmate.yaml")
}

// Load reads the YAML file at path, expands ${VAR} references, and
// overlays it on the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "unable to read config %s", path)
	}

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return cfg, errors.Wrapf(err, "unable to parse config %s", path)
	}

	if raw.Vendor.Name != "" {
		cfg.Vendor.Name = raw.Vendor.Name
	}
	if len(raw.Vendor.Senders) > 0 {
		cfg.Vendor.Senders = raw.Vendor.Senders
	}
	if len(raw.Vendor.SubjectKeywords) > 0 {
		cfg.Vendor.SubjectKeywords = raw.Vendor.SubjectKeywords
	}
	if len(raw.Vendor.BodyKeywords) > 0 {
		cfg.Vendor.BodyKeywords = raw.Vendor.BodyKeywords
	}
	if len(raw.Vendor.Marks) > 0 {
		cfg.Vendor.Marks = raw.Vendor.Marks
	}

	if raw.Quota.ResetDay != "" {
		day, err := parseWeekday(raw.Quota.ResetDay)
		if err != nil {
			return cfg, errors.Wrapf(err, "bad quota.reset_day in %s", path)
		}
		cfg.ResetDay = day
	}
	if raw.Quota.MealsPerWeek > 0 {
		cfg.MealsPerWeek = raw.Quota.MealsPerWeek
	}

	if raw.Gmail.Credentials != "" {
		cfg.CredentialsPath = raw.Gmail.Credentials
	}
	if raw.Gmail.Token != "" {
		cfg.TokenPath = raw.Gmail.Token
	}

	if raw.Scan.Days > 0 {
		cfg.Days = raw.Scan.Days
	}
	if raw.Scan.MaxResults > 0 {
		cfg.MaxResults = raw.Scan.MaxResults
	}
	if raw.Scan.Concurrency > 0 {
		cfg.Concurrency = raw.Scan.Concurrency
	}

	if raw.Server.Listen != "" {
		cfg.ListenAddr = raw.Server.Listen
	}

	return cfg, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return d, nil
		}
	}
	return 0, errors.Errorf("unknown weekday %q", name)
}
