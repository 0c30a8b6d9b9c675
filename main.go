/*
Cozy player opens an mp4 container, checks its video track and shows a
textured quad in a Vulkan window.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/spaghettifunk/cozy/engine"
	"github.com/spaghettifunk/cozy/engine/config"
	"github.com/spaghettifunk/cozy/engine/core"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file (default "+config.DefaultPath+")")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [input.mp4]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogFatal(err.Error())
	}
	core.WithSession(uuid.NewString())

	input, err := engine.SelectInput(flag.Args(), cfg.Media.SamplePath, core.DebugEnabled)
	if err != nil {
		flag.Usage()
		core.LogFatal(err.Error())
	}

	e, err := engine.New(cfg)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(input); err != nil {
		core.LogFatal("failed to initialize: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		_ = e.Shutdown()
	}()

	if err := e.Run(); err != nil {
		core.LogFatal(err.Error())
	}
}
