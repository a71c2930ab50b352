package service

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes site results to MQTT.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	mu            sync.RWMutex
}

// BatchStatus is the summary published after each batch.
type BatchStatus struct {
	Sites     int     `json:"sites"`
	Matched   int     `json:"matched"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	Error     string  `json:"error,omitempty"`
	ElapsedMs float64 `json:"elapsedMs"`
	Timestamp int64   `json:"timestamp"`
}

// NewPublisher creates a publisher. A nil client disables publishing.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "coordenv"
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,
		retain:        false,
	}
}

// PublishResult publishes to <prefix>/results/<site id>.
func (p *Publisher) PublishResult(result SiteResult) error {
	return p.publish(fmt.Sprintf("%s/results/%s", p.publishPrefix, result.ID), result)
}

// PublishStatus publishes to <prefix>/status.
func (p *Publisher) PublishStatus(status BatchStatus) error {
	if status.Timestamp == 0 {
		status.Timestamp = time.Now().Unix()
	}
	return p.publish(p.publishPrefix+"/status", status)
}

func (p *Publisher) publish(topic string, v any) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}

	p.mu.RLock()
	qos, retain := p.qos, p.retain
	p.mu.RUnlock()

	token := p.client.Publish(topic, qos, retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	log.Printf("[MQTT] published %d bytes to %s", len(payload), topic)
	return nil
}

// Prefix returns the topic prefix.
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos > 2 {
		return
	}
	p.mu.Lock()
	p.qos = qos
	p.mu.Unlock()
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.mu.Lock()
	p.retain = retain
	p.mu.Unlock()
}
