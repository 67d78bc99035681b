package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kwv/arenaline/arena"
)

// serviceStatus is the transport state reported on /health. Nil fields
// are left out of the response.
type serviceStatus struct {
	Mailbox   *arena.FrameMailbox
	MQTT      interface{ IsConnected() bool }
	Publisher interface {
		Last() (arena.LinesMessage, bool)
	}
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(debug *arena.DebugStore, params *arena.ParamStore, svc serviceStatus) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		frames, updated := debug.Frames()
		status := struct {
			Status        string     `json:"status"`
			Timestamp     time.Time  `json:"timestamp"`
			Frames        uint64     `json:"frames"`
			LastFrame     *time.Time `json:"lastFrame,omitempty"`
			Dropped       uint64     `json:"dropped"`
			MQTTConnected *bool      `json:"mqttConnected,omitempty"`
			LastPublished string     `json:"lastPublished,omitempty"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Frames:    frames,
		}
		if !updated.IsZero() {
			status.LastFrame = &updated
		}
		if svc.Mailbox != nil {
			status.Dropped = svc.Mailbox.Dropped()
		}
		if svc.MQTT != nil {
			connected := svc.MQTT.IsConnected()
			status.MQTTConnected = &connected
		}
		if svc.Publisher != nil {
			if last, ok := svc.Publisher.Last(); ok {
				status.LastPublished = last.FrameID
			}
		}
		writeJSON(w, status)
	})

	// Boundary lines of the most recent frame
	mux.HandleFunc("/lines", func(w http.ResponseWriter, r *http.Request) {
		res, ok := debug.LastResult()
		if !ok {
			http.Error(w, "No frame processed yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, arena.NewLinesMessage(res))
	})

	mux.HandleFunc("/lines.geojson", func(w http.ResponseWriter, r *http.Request) {
		res, ok := debug.LastResult()
		if !ok {
			http.Error(w, "No frame processed yet", http.StatusServiceUnavailable)
			return
		}
		data, err := arena.LinesToFeatureCollection(res.Lines, res.Corners, res.Bounds).MarshalJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})

	// Live tunables
	mux.HandleFunc("/params", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, params.Get())
		case http.MethodPut:
			body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			// Fields absent from the body keep their current value
			var updated arena.Params
			err = params.Update(func(p *arena.Params) error {
				if err := json.Unmarshal(body, p); err != nil {
					return fmt.Errorf("invalid JSON: %w", err)
				}
				updated = *p
				return nil
			})
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Printf("[HTTP] params updated: %+v", updated)
			writeJSON(w, updated)
		default:
			w.Header().Set("Allow", "GET, PUT")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Intermediate pipeline images, e.g. /debug/edges.png
	mux.HandleFunc("/debug/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/debug/")
		if name == "" {
			writeJSON(w, debug.Stages())
			return
		}
		stage, ok := strings.CutSuffix(name, ".png")
		if !ok {
			http.NotFound(w, r)
			return
		}
		img, ok := debug.Stage(stage)
		if !ok {
			http.Error(w, fmt.Sprintf("No image for stage %q", stage), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := arena.EncodePNG(w, img); err != nil {
			log.Printf("Error encoding %s PNG: %v", stage, err)
		}
	})

	// Result drawn over the rectified frame
	mux.HandleFunc("/overlay.png", func(w http.ResponseWriter, r *http.Request) {
		res, ok := debug.LastResult()
		if !ok {
			http.Error(w, "No frame processed yet", http.StatusServiceUnavailable)
			return
		}
		base, _ := debug.Stage(arena.StageRectified)
		img := arena.RenderOverlay(base, res, params.Get().Workspace)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := arena.EncodePNG(w, img); err != nil {
			log.Printf("Error encoding overlay PNG: %v", err)
		}
	})

	mux.HandleFunc("/overlay.svg", func(w http.ResponseWriter, r *http.Request) {
		res, ok := debug.LastResult()
		if !ok {
			http.Error(w, "No frame processed yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := arena.NewVectorOverlay(res, params.Get().Workspace).RenderToSVG(w); err != nil {
			log.Printf("Error encoding overlay SVG: %v", err)
		}
	})

	// Default route serves an HTML page embedding the overlay
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>arenaline</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
html,body{width:100%;height:100%;overflow:hidden;background:#1a1a1a}
img{display:block;width:100vw;height:100vh;object-fit:contain}
</style>
</head>
<body>
<img src="/overlay.png" alt="Arena boundary">
</body>
</html>`)
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}
