package arena

import (
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// FrameHandler is called for every message on the camera topic.
// img is nil when err is set.
type FrameHandler func(topic string, img image.Image, err error)

// AttitudeHandler is called for every message on the attitude topic
type AttitudeHandler func(att Attitude, err error)

// MQTTClient manages the broker connection and the camera and attitude
// subscriptions
type MQTTClient struct {
	client          mqtt.Client
	config          *Config
	frameHandler    FrameHandler
	attitudeHandler AttitudeHandler
	isConnected     bool
	mu              sync.RWMutex
}

// InitMQTT creates the MQTT client and starts connecting in the
// background. If no broker is configured MQTT is disabled and this returns
// nil, nil.
func InitMQTT(config *Config, frames FrameHandler, attitude AttitudeHandler) (*MQTTClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	broker := envOr("MQTT_BROKER", config.MQTT.Broker)
	if broker == "" {
		log.Println("[MQTT] disabled: no broker configured")
		return nil, nil
	}
	if config.Camera.Topic == "" {
		return nil, fmt.Errorf("MQTT enabled but no camera topic configured")
	}

	client := &MQTTClient{
		config:          config,
		frameHandler:    frames,
		attitudeHandler: attitude,
	}
	client.client = mqtt.NewClient(client.clientOptions(broker))
	go client.connectWithRetry()

	return client, nil
}

// envOr returns the environment variable key, or fallback when it is unset
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *MQTTClient) clientOptions(broker string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(envOr("MQTT_CLIENT_ID", c.config.MQTT.ClientID))

	if opts.ClientID == "" {
		opts.SetClientID("arenaline")
	}
	if user := envOr("MQTT_USERNAME", c.config.MQTT.Username); user != "" {
		opts.SetUsername(user)
		opts.SetPassword(envOr("MQTT_PASSWORD", c.config.MQTT.Password))
	}

	// Frames are only useful live, so a reconnect starts a clean session
	opts.SetCleanSession(true).
		SetOrderMatters(false).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute)

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = c.onConnectionLost
	opts.OnReconnecting = c.onReconnecting
	return opts
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the camera and attitude topics
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{c.config.Camera.Topic, c.createFrameHandler()},
		{c.config.Attitude.Topic, c.createAttitudeHandler()},
	}
	for _, s := range subs {
		if s.topic == "" {
			continue
		}
		log.Printf("[MQTT] subscribing to %s", s.topic)
		token := client.Subscribe(s.topic, 0, s.handler)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("[MQTT] error subscribing to %s: %v", s.topic, token.Error())
		}
	}
}

// onConnectionLost is called when the MQTT connection is lost.
// Auto-reconnect is enabled, so this is typically a transient event.
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] reconnecting...")
}

// createFrameHandler decodes camera payloads before handing them on
func (c *MQTTClient) createFrameHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		if c.frameHandler == nil {
			return
		}
		img, err := DecodeFrame(msg.Payload())
		if err != nil {
			c.frameHandler(msg.Topic(), nil, fmt.Errorf("decoding frame from %s (%d bytes): %w", msg.Topic(), len(msg.Payload()), err))
			return
		}
		c.frameHandler(msg.Topic(), img, nil)
	}
}

// createAttitudeHandler parses attitude payloads before handing them on
func (c *MQTTClient) createAttitudeHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		if c.attitudeHandler == nil {
			return
		}
		c.attitudeHandler(ParseAttitude(msg.Payload()))
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client
func newMQTTClientWithMock(client mqtt.Client, config *Config, frames FrameHandler, attitude AttitudeHandler) *MQTTClient {
	return &MQTTClient{
		client:          client,
		config:          config,
		frameHandler:    frames,
		attitudeHandler: attitude,
	}
}
