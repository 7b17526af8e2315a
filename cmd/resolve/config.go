package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/omeid/uconfig"
	"github.com/omeid/uconfig/plugins"
	"github.com/omeid/uconfig/plugins/file"
)

// configFilename is the filename of the config file automatically loaded.
var configFilename = "config.json"

type config struct {
	Log struct {
		Human bool `default:"false"`
		Debug bool `default:"false"`
	}
	Metrics struct {
		Port string `default:"9090"`
	}
}

func setupConfig() *config {
	fileBytes, err := os.ReadFile(configFilename)
	fileStr := string(fileBytes)
	var plugins []plugins.Plugin
	if !errors.Is(err, os.ErrNotExist) {
		fileStr = os.ExpandEnv(fileStr)
		plugins = append(plugins, file.NewReader(strings.NewReader(fileStr), json.Unmarshal))
	}

	conf := &config{}
	c, uerr := uconfig.Classic(&conf, file.Files{}, plugins...)
	if uerr != nil {
		fmt.Printf("invalid configuration: %s", uerr)
		c.Usage()
		os.Exit(1)
	}

	return conf
}
