package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/arenaline/arena"
)

const (
	defaultConfigFile = "config.yaml"
	defaultHTTPPort   = 8080
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *arena.Config
	Params     *arena.ParamStore
	Attitude   *arena.AttitudeTracker
	Processor  arena.FrameProcessor
	Pipeline   *arena.Pipeline
	Debug      *arena.DebugStore
	Mailbox    *arena.FrameMailbox
	MQTTClient *arena.MQTTClient
	Publisher  *arena.Publisher

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	Roll         float64
	Pitch        float64
	OutputFile   string
	RenderFormat string
	VectorFormat string
	HttpPort     int
	HttpMode     bool
	MqttMode     bool

	newProcessor func(arena.CameraModel, arena.ExtractorConfig) (arena.FrameProcessor, error)
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Debug:        arena.NewDebugStore(),
		Mailbox:      arena.NewFrameMailbox(),
		ConfigFile:   defaultConfigFile,
		newProcessor: newCVProcessor,
	}
}

// newCVProcessor keeps a failed construction from becoming a non-nil
// interface holding a nil pointer
func newCVProcessor(cam arena.CameraModel, ext arena.ExtractorConfig) (arena.FrameProcessor, error) {
	p, err := arena.NewCVProcessor(cam, ext)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Roll = opts.Roll
	a.Pitch = opts.Pitch
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
	a.VectorFormat = opts.VectorFormat
	a.HttpPort = opts.HttpPort
	a.HttpMode = opts.HttpMode
	a.MqttMode = opts.MqttMode
}

// loadConfig reads the config file. A missing default config.yaml falls
// back to built-in defaults; an explicitly named file must exist.
func (a *App) loadConfig() (*arena.Config, error) {
	path := a.ConfigFile
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigFile {
		log.Printf("No %s found, using defaults", path)
		return arena.DefaultConfig(), nil
	}
	config, err := arena.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	log.Printf("Loaded config from %s", path)
	return config, nil
}

// setup builds the processing chain from the configuration
func (a *App) setup() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.Config = config

	a.Params, err = arena.NewParamStore(config.Detection)
	if err != nil {
		return fmt.Errorf("detection params: %w", err)
	}
	a.Attitude = arena.NewAttitudeTracker(config.Attitude.MaxAge)

	if a.Processor == nil {
		a.Processor, err = a.newProcessor(config.Camera.CameraModel, config.Extractor)
		if err != nil {
			return fmt.Errorf("creating frame processor: %w", err)
		}
	}

	a.Pipeline = arena.NewPipeline(a.Processor, a.Attitude, a.Params,
		arena.WithObserver(a.Debug),
		arena.WithFocalLength(config.Camera.FocalLength),
	)
	return nil
}

func (a *App) close() {
	if a.Processor != nil {
		if err := a.Processor.Close(); err != nil {
			log.Printf("Error releasing frame processor: %v", err)
		}
	}
}

// RunProcess runs the pipeline once on an image file, or a snapshot URL, at
// the attitude given on the command line
func (a *App) RunProcess(path string) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer a.close()

	frame, err := loadFrame(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	a.Attitude.Update(arena.Attitude{Roll: a.Roll, Pitch: a.Pitch})
	res := a.Pipeline.Process(frame)
	if res.Error != "" {
		return fmt.Errorf("processing %s: %s", path, res.Error)
	}

	fmt.Printf("=== %s ===\n", path)
	fmt.Printf("Frame: %.0fx%.0f  roll=%.3f pitch=%.3f  (%v)\n",
		res.Bounds.Width, res.Bounds.Height, res.Attitude.Roll, res.Attitude.Pitch, res.Duration.Round(time.Microsecond))
	fmt.Printf("Raw detections: %d\n", len(res.RawLines))
	fmt.Printf("Boundary lines: %d\n", len(res.Lines))
	for i, l := range res.Lines {
		fmt.Printf("  [%d] rho=%.1f theta=%.1f°\n", i, l.Rho, l.Theta()*180/math.Pi)
	}
	for i, c := range res.Corners {
		fmt.Printf("  corner[%d] (%.1f, %.1f)", i, c.X, c.Y)
		if i < len(res.FrameCorners) {
			fmt.Printf("  camera (%.1f, %.1f)", res.FrameCorners[i].X, res.FrameCorners[i].Y)
		}
		fmt.Println()
	}

	if a.OutputFile == "" {
		return nil
	}
	base, ok := a.Debug.Stage(arena.StageRectified)
	if !ok {
		base = frame
	}
	if err := a.writeOverlay(a.OutputFile, base, res); err != nil {
		return err
	}
	fmt.Printf("Overlay written to %s\n", a.OutputFile)
	return nil
}

func loadFrame(path string) (image.Image, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return arena.FetchFrame(ctx, path)
	}
	return arena.DecodeFrameFile(path)
}

// writeOverlay renders res in the configured format
func (a *App) writeOverlay(path string, base image.Image, res arena.FrameResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	workspace := a.Params.Get().Workspace
	switch a.RenderFormat {
	case "vector":
		v := arena.NewVectorOverlay(res, workspace)
		if a.VectorFormat == "png" {
			err = v.RenderToPNG(f)
		} else {
			err = v.RenderToSVG(f)
		}
	case "", "raster":
		err = arena.EncodePNG(f, arena.RenderOverlay(base, res, workspace))
	default:
		err = fmt.Errorf("unknown render format %q (want raster or vector)", a.RenderFormat)
	}
	if err != nil {
		return fmt.Errorf("writing overlay: %w", err)
	}
	return f.Close()
}

// status collects what /health reports. Interfaces stay nil without MQTT.
func (a *App) status() serviceStatus {
	svc := serviceStatus{Mailbox: a.Mailbox}
	if a.MQTTClient != nil {
		svc.MQTT = a.MQTTClient
	}
	if a.Publisher != nil {
		svc.Publisher = a.Publisher
	}
	return svc
}

// httpPort prefers --http-port, then http.port from the config file
func (a *App) httpPort() int {
	if a.HttpPort > 0 {
		return a.HttpPort
	}
	if a.Config != nil && a.Config.HTTP.Port > 0 {
		return a.Config.HTTP.Port
	}
	return defaultHTTPPort
}

// onFrame queues decoded camera frames for the worker
func (a *App) onFrame(topic string, img image.Image, err error) {
	if err != nil {
		log.Printf("Error receiving frame on %s: %v", topic, err)
		return
	}
	a.Mailbox.Put(arena.Frame{Image: img, Received: time.Now()})
}

func (a *App) onAttitude(att arena.Attitude, err error) {
	if err != nil {
		log.Printf("Error receiving attitude: %v", err)
		return
	}
	a.Attitude.Update(att)
}

// handleFrame runs on the mailbox worker. A failed frame is published as an
// empty result that replaces the retained lines.
func (a *App) handleFrame(f arena.Frame) {
	res := a.Pipeline.Process(f.Image)
	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(res); err != nil {
			log.Printf("Error publishing lines for frame %s: %v", res.ID, err)
		}
	}
}

// RunService processes camera frames from MQTT and/or a polled snapshot URL
// until interrupted
func (a *App) RunService() error {
	fmt.Println("Starting arenaline service...")

	if err := a.setup(); err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Mailbox.Start(ctx, a.handleFrame); err != nil {
		return err
	}
	defer a.Mailbox.Stop()

	if a.MqttMode {
		mqttClient, err := arena.InitMQTT(a.Config, a.onFrame, a.onAttitude)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		switch {
		case mqttClient != nil:
			a.MQTTClient = mqttClient
			defer a.MQTTClient.Disconnect()

			a.Publisher = arena.NewPublisher(mqttClient.GetClient(), a.Config.GetPublishPrefix())
			a.Publisher.Configure(a.Config.MQTT)
			fmt.Println("MQTT line publisher initialized")
		case a.Config.Camera.SnapshotURL == "":
			return fmt.Errorf("MQTT broker not configured in %s", a.ConfigFile)
		default:
			log.Printf("MQTT broker not configured, using camera snapshots only")
		}
	}

	if url := a.Config.Camera.SnapshotURL; url != "" {
		go arena.PollSnapshots(ctx, url, a.Config.Camera.GetPollInterval(), a.onFrame)
	}

	var srv *http.Server
	if a.HttpMode {
		srv = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.httpPort()),
			Handler:           newHTTPServer(a.Debug, a.Params, a.status()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
				stop()
			}
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")

	if url := a.Config.Camera.SnapshotURL; url != "" {
		fmt.Printf("\nCamera snapshots: %s every %v\n", url, a.Config.Camera.GetPollInterval())
	}

	if a.MQTTClient != nil {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		fmt.Printf("    - %s (camera)\n", a.Config.Camera.Topic)
		fmt.Printf("    - %s (attitude)\n", a.Config.Attitude.Topic)
		fmt.Printf("  Publishing to: %s\n", a.Publisher.LinesTopic())
		fmt.Printf("  GeoJSON: %s\n", a.Publisher.GeoJSONTopic())
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.httpPort())
		fmt.Println("  GET /health              - Health check")
		fmt.Println("  GET /lines               - Latest boundary lines (JSON)")
		fmt.Println("  GET /lines.geojson       - Latest boundary lines (GeoJSON)")
		fmt.Println("  GET|PUT /params          - Live detection parameters")
		fmt.Println("  GET /debug/{stage}.png   - Intermediate pipeline images")
		fmt.Println("  GET /overlay.png|svg     - Result drawn over the rectified frame")
	}

	fmt.Println("\nPress Ctrl+C to stop")
	<-ctx.Done()

	fmt.Println("\nShutting down service...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	fmt.Printf("Frames processed: %d, dropped: %d\n", a.Mailbox.Delivered(), a.Mailbox.Dropped())
	fmt.Println("Service stopped")
	return nil
}
