package main

import (
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/pickplace/pkg/logging"
)

type Options struct {
	Config  string `long:"config" short:"c" default:"pickplace.json" description:"Configuration file (.json, .yaml or .yml)"`
	Debug   bool   `long:"debug" description:"Enable debug logging"`
	LogJSON string `long:"log-json" description:"Append JSON log records to this file"`
	Journal bool   `long:"journal" description:"Also log to the systemd journal"`

	Setup  SetupCommand  `command:"setup" description:"Find the arm, calibrate it and record its home pose"`
	Joints JointsCommand `command:"joints" description:"Print live arm joint readings"`
	Run    RunCommand    `command:"run" alias:"teach" description:"Teach five poses by hand, then replay them as pick and place"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "pickplace - teach and replay pick-and-place motions on SO-101 arms"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// newLogger builds the logger selected by the global options and installs
// it as the slog default.
func newLogger() (*slog.Logger, func() error, error) {
	logger, closeFn, err := logging.New(logging.Options{
		Writer:   os.Stderr,
		JSONPath: opts.LogJSON,
		Journal:  opts.Journal,
		Debug:    opts.Debug,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
