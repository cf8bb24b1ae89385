package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for one federationd process. A process runs exactly one
// Federation Entity.
type Config struct {
	Entity struct {
		Name       string `yaml:"name"`
		Identifier string `yaml:"identifier"`
	} `yaml:"entity"`
	ListenAddr   string   `yaml:"listen_addr"`
	TrustAnchors []string `yaml:"trust_anchors"`
}

func loadConfig(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}
