package rabbitmq

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes a payload on the topic it was built for.
type IPublisher interface {
	PublishMessage(ctx context.Context, payload []byte) error
	Topic() string
}

// Publisher publishes on a single MQTT topic over a shared client.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewPublisher(client mqtt.Client, topic string, qos byte) *Publisher {
	if qos > 2 {
		qos = 1
	}
	return &Publisher{client: client, topic: topic, qos: qos}
}

func (p *Publisher) Topic() string { return p.topic }

// PublishMessage attende l'ack del broker (qos>0) fino alla scadenza di ctx
func (p *Publisher) PublishMessage(ctx context.Context, payload []byte) error {
	if p.client == nil || !p.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: mqtt client not connected", p.topic)
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)

	wait := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", p.topic, ctx.Err())
	case <-time.After(wait):
		return fmt.Errorf("publish %s: timed out after %s", p.topic, wait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message on %s: %w", p.topic, err)
	}
	return nil
}
