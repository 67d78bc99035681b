package arena

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// LineMessage is the wire form of one boundary line
type LineMessage struct {
	Rho   float64 `json:"rho"`
	Theta float64 `json:"theta"` // radians
	Nx    float64 `json:"nx"`
	Ny    float64 `json:"ny"`
}

// LinesMessage is published for every processed frame
type LinesMessage struct {
	FrameID   string        `json:"frameId"`
	Timestamp int64         `json:"timestamp"` // unix milliseconds
	Levelled  bool          `json:"levelled"`
	Lines     []LineMessage `json:"lines"`
	Corners   []Point       `json:"corners"`
	// FrameCorners are the corners in camera frame coordinates
	FrameCorners []Point `json:"frameCorners,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// NewLinesMessage converts a frame result to its wire form
func NewLinesMessage(res FrameResult) LinesMessage {
	msg := LinesMessage{
		FrameID:   res.ID,
		Timestamp: res.Timestamp.UnixMilli(),
		Levelled:  res.Levelled,
		Lines:     make([]LineMessage, 0, len(res.Lines)),
		Corners:   res.Corners,

		FrameCorners: res.FrameCorners,
		Error:        res.Error,
	}
	if msg.Corners == nil {
		msg.Corners = []Point{}
	}
	for _, l := range res.Lines {
		msg.Lines = append(msg.Lines, LineMessage{
			Rho:   l.Rho,
			Theta: l.Theta(),
			Nx:    l.Orientation.X,
			Ny:    l.Orientation.Y,
		})
	}
	return msg
}

// Publisher sends frame results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	last          *LinesMessage
	mu            sync.RWMutex
}

// NewPublisher creates a result publisher. The prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then "arenaline".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "arenaline"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // frames arrive continuously, no need to redeliver
		retain:        true, // late subscribers get the latest boundary
	}
}

// LinesTopic returns the topic carrying LinesMessage payloads
func (p *Publisher) LinesTopic() string {
	return p.publishPrefix + "/lines"
}

// GeoJSONTopic returns the topic carrying GeoJSON payloads
func (p *Publisher) GeoJSONTopic() string {
	return p.publishPrefix + "/lines/geojson"
}

// PublishResult publishes the boundary lines of one frame as JSON and as
// a GeoJSON FeatureCollection
func (p *Publisher) PublishResult(res FrameResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	msg := NewLinesMessage(res)
	p.mu.Lock()
	p.last = &msg
	p.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling lines: %w", err)
	}
	if err := p.publish(p.LinesTopic(), payload); err != nil {
		return err
	}

	geo, err := LinesToFeatureCollection(res.Lines, res.Corners, res.Bounds).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling geojson: %w", err)
	}
	if err := p.publish(p.GeoJSONTopic(), geo); err != nil {
		return err
	}

	log.Printf("[MQTT] published %d lines, %d corners for frame %s", len(msg.Lines), len(msg.Corners), res.ID)
	return nil
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// Last returns the most recently published message
func (p *Publisher) Last() (LinesMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return LinesMessage{}, false
	}
	return *p.last, true
}

// Configure applies the publishing settings from the MQTT config
func (p *Publisher) Configure(cfg MQTTConfig) {
	p.SetQoS(cfg.QoS)
	if cfg.Retain != nil {
		p.SetRetain(*cfg.Retain)
	}
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
