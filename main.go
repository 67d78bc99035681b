package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command-line flags
type AppOptions struct {
	ConfigFile   string
	ProcessFile  string
	Roll         float64
	Pitch        float64
	OutputFile   string
	RenderFormat string
	VectorFormat string
	HttpPort     int
	HttpMode     bool
	MqttMode     bool
}

// AppRunner is the part of App that run dispatches to
type AppRunner interface {
	ApplyOptions(opts AppOptions)
	RunProcess(path string) error
	RunService() error
}

func main() {
	app := NewApp()
	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

// run parses args and starts the selected mode
func run(args []string, out io.Writer, app AppRunner) error {
	fs := flag.NewFlagSet("arenaline", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", defaultConfigFile, "Path to configuration file")
	fs.StringVar(&opts.ProcessFile, "process", "", "Process a single image file and exit")
	fs.Float64Var(&opts.Roll, "roll", 0, "Camera roll in radians for --process")
	fs.Float64Var(&opts.Pitch, "pitch", 0, "Camera pitch in radians for --process")
	fs.StringVar(&opts.OutputFile, "output", "", "Write an overlay of the result to this file (--process)")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Overlay format: raster or vector")
	fs.StringVar(&opts.VectorFormat, "vector-format", "svg", "Vector overlay output: svg or png")
	fs.IntVar(&opts.HttpPort, "http-port", 0, "HTTP server port (default http.port from the config, 8080)")
	fs.BoolVar(&opts.HttpMode, "http", true, "Serve the HTTP debug endpoints")
	fs.BoolVar(&opts.MqttMode, "mqtt", true, "Consume frames and attitude from MQTT")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "arenaline version: %s\n", Version)
	app.ApplyOptions(opts)

	if opts.ProcessFile != "" {
		return app.RunProcess(opts.ProcessFile)
	}

	if !opts.HttpMode && !opts.MqttMode {
		return fmt.Errorf("nothing to run: both --http and --mqtt are disabled")
	}
	fmt.Fprintln(out, "arenaline service starting...")
	return app.RunService()
}
