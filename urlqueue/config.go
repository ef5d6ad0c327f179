package urlqueue

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the work-queue service's on-disk configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	URLsPath   string `yaml:"urls_path"`
	NumURLs    *int   `yaml:"num_urls"`
	ReportPath string `yaml:"report_path"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "opening config file")
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config file")
	}
	return cfg, nil
}
