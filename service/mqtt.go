package service

import (
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// QueryHandler receives the decoded queries of one MQTT message.
type QueryHandler func(topic string, queries []SiteQuery)

// MQTTClient subscribes to the site query topic.
type MQTTClient struct {
	client      mqtt.Client
	config      MQTTConfig
	handler     QueryHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT connects to the configured broker in the background.
// If neither MQTT_BROKER nor the config names a broker, MQTT is disabled and this returns nil.
func InitMQTT(config MQTTConfig, handler QueryHandler) *MQTTClient {
	config = applyMQTTEnv(config)
	if config.Broker == "" {
		log.Println("[MQTT] disabled: no broker configured")
		return nil
	}

	c := &MQTTClient{config: config, handler: handler}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // keep the query subscription across reconnects
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)
	go c.connectWithRetry()
	return c
}

// applyMQTTEnv overlays MQTT_* environment variables on the config.
func applyMQTTEnv(config MQTTConfig) MQTTConfig {
	overlay := map[string]*string{
		"MQTT_BROKER":         &config.Broker,
		"MQTT_CLIENT_ID":      &config.ClientID,
		"MQTT_USERNAME":       &config.Username,
		"MQTT_PASSWORD":       &config.Password,
		"MQTT_QUERY_TOPIC":    &config.QueryTopic,
		"MQTT_PUBLISH_PREFIX": &config.PublishPrefix,
	}
	for env, field := range overlay {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	if config.ClientID == "" {
		config.ClientID = "coordenv"
	}
	return config
}

func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Printf("[MQTT] connecting to %s...", c.config.Broker)
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

func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	topic := c.config.QueryTopic
	if topic == "" {
		log.Println("[MQTT] warning: no query topic configured, not subscribing")
		return
	}

	token := client.Subscribe(topic, 1, c.onMessage)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] subscribed to %s", topic)
}

// Auto-reconnect is enabled, so a lost connection is usually transient.
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] reconnecting...")
}

func (c *MQTTClient) onMessage(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	log.Printf("[MQTT] received %d bytes on %s", len(payload), msg.Topic())

	queries, err := DecodeQueries(payload)
	if err != nil {
		log.Printf("[MQTT] dropping message on %s: %v", msg.Topic(), err)
		return
	}
	if c.handler != nil {
		c.handler(msg.Topic(), queries)
	}
}

// IsConnected reports whether the broker connection is up.
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

// Client returns the underlying client, for publishing.
func (c *MQTTClient) Client() mqtt.Client {
	return c.client
}

// Config returns the effective MQTT settings after environment overrides.
func (c *MQTTClient) Config() MQTTConfig {
	return c.config
}

// Disconnect closes the connection with a 250ms quiesce.
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// newMQTTClientWithMock wraps an existing client; used by tests.
func newMQTTClientWithMock(client mqtt.Client, config MQTTConfig, handler QueryHandler) *MQTTClient {
	return &MQTTClient{client: client, config: config, handler: handler}
}
