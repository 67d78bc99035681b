package main

import (
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kwv/arenaline/arena"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (http.Handler, *arena.DebugStore, *arena.ParamStore) {
	t.Helper()
	debug := arena.NewDebugStore()
	params, err := arena.NewParamStore(arena.DefaultParams())
	require.NoError(t, err)
	return newHTTPServer(debug, params, serviceStatus{Mailbox: arena.NewFrameMailbox()}), debug, params
}

func sampleResult() arena.FrameResult {
	return arena.FrameResult{
		ID:        "frame-7",
		Timestamp: time.Now(),
		Bounds:    arena.Rect{Width: 64, Height: 48},
		Lines: []arena.Line{
			arena.NewLine(10, arena.Vec2{X: 1}),
			arena.NewLine(20, arena.Vec2{Y: 1}),
		},
		Corners: []arena.Point{{X: 10, Y: 20}},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func put(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, path, strings.NewReader(body)))
	return w
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealth_NoFrames(t *testing.T) {
	h, _, _ := newTestServer(t)
	w := get(t, h, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 0.0, body["frames"])
	assert.NotContains(t, body, "lastFrame")
}

func TestHealth_WithFrames(t *testing.T) {
	h, debug, _ := newTestServer(t)
	debug.ObserveResult(sampleResult())

	w := get(t, h, "/health")
	var body struct {
		Frames    uint64     `json:"frames"`
		LastFrame *time.Time `json:"lastFrame"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, uint64(1), body.Frames)
	assert.NotNil(t, body.LastFrame)
}

func TestHealth_NilMailbox(t *testing.T) {
	params, err := arena.NewParamStore(arena.DefaultParams())
	require.NoError(t, err)
	h := newHTTPServer(arena.NewDebugStore(), params, serviceStatus{})
	w := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotContains(t, body, "mqttConnected")
	assert.NotContains(t, body, "lastPublished")
}

type fakeConn bool

func (c fakeConn) IsConnected() bool { return bool(c) }

func TestHealth_MQTTStatus(t *testing.T) {
	params, err := arena.NewParamStore(arena.DefaultParams())
	require.NoError(t, err)

	mc := arena.NewMockClient()
	mc.SetConnected(true)
	pub := arena.NewPublisher(mc, "test")

	h := newHTTPServer(arena.NewDebugStore(), params, serviceStatus{MQTT: fakeConn(false), Publisher: pub})

	var body struct {
		MQTTConnected *bool  `json:"mqttConnected"`
		LastPublished string `json:"lastPublished"`
	}
	require.NoError(t, json.NewDecoder(get(t, h, "/health").Body).Decode(&body))
	require.NotNil(t, body.MQTTConnected)
	assert.False(t, *body.MQTTConnected)
	assert.Empty(t, body.LastPublished)

	require.NoError(t, pub.PublishResult(sampleResult()))
	require.NoError(t, json.NewDecoder(get(t, h, "/health").Body).Decode(&body))
	assert.Equal(t, "frame-7", body.LastPublished)
}

// ---------------------------------------------------------------------------
// /lines
// ---------------------------------------------------------------------------

func TestLines(t *testing.T) {
	h, debug, _ := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/lines").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/lines.geojson").Code)

	debug.ObserveResult(sampleResult())

	w := get(t, h, "/lines")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var msg arena.LinesMessage
	require.NoError(t, json.NewDecoder(w.Body).Decode(&msg))
	assert.Equal(t, "frame-7", msg.FrameID)
	assert.Len(t, msg.Lines, 2)
	assert.Len(t, msg.Corners, 1)

	w = get(t, h, "/lines.geojson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3)
}

// ---------------------------------------------------------------------------
// /params
// ---------------------------------------------------------------------------

func TestParams_Get(t *testing.T) {
	h, _, _ := newTestServer(t)
	w := get(t, h, "/params")
	require.Equal(t, http.StatusOK, w.Code)

	var p arena.Params
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	assert.Equal(t, arena.DefaultParams(), p)
}

func TestParams_Put(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantWhite int
	}{
		{"partial update", `{"whiteThreshold":150}`, http.StatusOK, 150},
		{"invalid value", `{"whiteThreshold":999}`, http.StatusBadRequest, 200},
		{"bad json", `{"whiteThreshold":`, http.StatusBadRequest, 200},
		{"wrong type after valid field", `{"whiteThreshold":150,"undistort":"yes"}`, http.StatusBadRequest, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, params := newTestServer(t)
			w := put(t, h, "/params", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantWhite, params.Get().WhiteThreshold)
			assert.Equal(t, arena.DefaultParams().DistanceThreshold, params.Get().DistanceThreshold)
		})
	}
}

func TestParams_ConcurrentPutsKeepEachField(t *testing.T) {
	h, _, params := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		body := `{"whiteThreshold":150}`
		if i%2 == 1 {
			body = `{"distanceThreshold":35}`
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/params", strings.NewReader(body)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 150, params.Get().WhiteThreshold)
	assert.Equal(t, 35.0, params.Get().DistanceThreshold)
}

func TestParams_MethodNotAllowed(t *testing.T) {
	h, _, _ := newTestServer(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/params", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, PUT", w.Header().Get("Allow"))
}

// ---------------------------------------------------------------------------
// /debug and overlays
// ---------------------------------------------------------------------------

func TestDebugStage(t *testing.T) {
	h, debug, _ := newTestServer(t)
	debug.ObserveStage(arena.StageEdges, image.NewGray(image.Rect(0, 0, 16, 8)))

	w := get(t, h, "/debug/")
	require.Equal(t, http.StatusOK, w.Code)
	var stages []string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stages))
	assert.Equal(t, []string{arena.StageEdges}, stages)

	w = get(t, h, "/debug/edges.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	assert.Equal(t, http.StatusNotFound, get(t, h, "/debug/blurred.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/debug/edges").Code)
}

func TestOverlay(t *testing.T) {
	h, debug, _ := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/overlay.png").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/overlay.svg").Code)

	debug.ObserveResult(sampleResult())

	w := get(t, h, "/overlay.png")
	require.Equal(t, http.StatusOK, w.Code)
	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	w = get(t, h, "/overlay.svg")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<svg")
}

func TestOverlay_UsesRectifiedFrame(t *testing.T) {
	h, debug, _ := newTestServer(t)
	debug.ObserveStage(arena.StageRectified, image.NewGray(image.Rect(0, 0, 80, 60)))
	debug.ObserveResult(sampleResult())

	img, err := png.Decode(get(t, h, "/overlay.png").Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 80, 60), img.Bounds())
}

func TestIndexAndNotFound(t *testing.T) {
	h, _, _ := newTestServer(t)

	w := get(t, h, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<img src="/overlay.png"`)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}
