package utils

import (
	"github.com/netpie/microgear-go/pkg/file"
	"github.com/netpie/microgear-go/pkg/microgear"
)

// Config represents the structure of the gearctl configuration file.
type Config struct {
	// Gear holds the client credentials and connection options.
	Gear microgear.Config `yaml:"gear"`

	App struct {
		ID string `yaml:"id"` // Application id scoping the topic namespace
	} `yaml:"app"`

	Log struct {
		Level  string `yaml:"level"`  // zerolog level name
		Writer string `yaml:"writer"` // "console" or "json"
	} `yaml:"log"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
