package main

import (
	"github.com/andewx/grayv"
	"github.com/andewx/grayv/log"
	"github.com/urfave/cli"
)

var logger = log.New("grayv")

// setup loads the configuration and applies its log level; -v and -vv win
// over the file.
func setup(ctx *cli.Context) (grayv.Config, error) {
	cfg := grayv.DefaultConfig()
	if path := ctx.GlobalString("config"); path != "" {
		var err error
		if cfg, err = grayv.LoadConfig(path); err != nil {
			return cfg, err
		}
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, err
	}
	if ctx.GlobalBool("v") {
		level = log.Info
	}
	if ctx.GlobalBool("vv") {
		level = log.Debug
	}
	log.SetLevel(level)
	return cfg, nil
}
