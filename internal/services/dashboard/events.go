package dashboard

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/messages"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/dedup"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/logger"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/metrics"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/rabbitmq"
)

const DefaultTopicTemplate = "event/fertilizerRecommendation/{field}"

type NotifierConfig struct {
	TopicTemplate  string // "{field}" is replaced by the field id
	QoS            byte
	DedupTTL       time.Duration
	QueueSize      int
	PublishTimeout time.Duration
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

type pendingEvent struct {
	key   string
	event messages.FertilizerRecommendationEvent
}

// Notifier publishes recommendation events off the request path.
// A nil *Notifier drops everything.
type Notifier struct {
	client mqtt.Client
	cfg    NotifierConfig
	newPub func(topic string) rabbitmq.IPublisher
	dedup  *dedup.Deduper
	queue  chan pendingEvent
	log    *zap.Logger
	now    func() time.Time
}

func NewNotifier(client mqtt.Client, cfg NotifierConfig) *Notifier {
	if cfg.TopicTemplate == "" {
		cfg.TopicTemplate = DefaultTopicTemplate
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	n := &Notifier{
		client: client,
		cfg:    cfg,
		dedup:  dedup.New(cfg.DedupTTL, 0),
		queue:  make(chan pendingEvent, cfg.QueueSize),
		log:    logger.OrNop(cfg.Logger),
		now:    time.Now,
	}
	n.newPub = func(topic string) rabbitmq.IPublisher { return rabbitmq.NewPublisher(client, topic, cfg.QoS) }
	return n
}

func (n *Notifier) Connected() bool {
	return n != nil && n.client != nil && n.client.IsConnectionOpen()
}

func (n *Notifier) topic(fieldID string) string {
	return strings.ReplaceAll(n.cfg.TopicTemplate, "{field}", fieldID)
}

// eventKey identifies a (field, inputs) submission.
func eventKey(fieldID string, rec *advisor.Recommendation) string {
	vals := rec.Sample.Values()
	parts := make([]string, 0, len(vals)+1)
	parts = append(parts, fieldID)
	for _, v := range vals {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return dedup.Key(parts...)
}

// Enqueue never blocks: a full queue drops the event.
func (n *Notifier) Enqueue(fieldID string, rec *advisor.Recommendation) {
	if n == nil || rec == nil || fieldID == "" {
		return
	}
	ev := messages.FertilizerRecommendationEvent{
		EventID:    uuid.NewString(),
		FieldID:    fieldID,
		Fertilizer: rec.Fertilizer,
		RateKgHa:   rec.RateKgHa,
		Inputs:     rec.Sample,
		Timestamp:  n.now().UTC(),
	}
	select {
	case n.queue <- pendingEvent{key: eventKey(fieldID, rec), event: ev}:
	default:
		n.log.Warn("event queue full, dropping recommendation event", zap.String("field_id", fieldID))
		n.cfg.Metrics.ObserveEvent("dropped")
	}
}

// Run publishes queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-n.queue:
			n.publish(ctx, p)
		}
	}
}

func (n *Notifier) publish(ctx context.Context, p pendingEvent) {
	if !n.dedup.ShouldProcess(p.key) {
		n.log.Debug("duplicate recommendation event skipped", zap.String("field_id", p.event.FieldID))
		n.cfg.Metrics.ObserveEvent("duplicate")
		return
	}
	payload, err := json.Marshal(p.event)
	if err != nil {
		n.dedup.Forget(p.key)
		n.log.Error("marshal recommendation event", zap.Error(err))
		n.cfg.Metrics.ObserveEvent("failed")
		return
	}
	pub := n.newPub(n.topic(p.event.FieldID))

	ctx, cancel := context.WithTimeout(ctx, n.cfg.PublishTimeout)
	defer cancel()
	if err := pub.PublishMessage(ctx, payload); err != nil {
		// non consegnato: una nuova submission identica deve poter ripartire
		n.dedup.Forget(p.key)
		n.log.Warn("publish recommendation event", zap.String("topic", pub.Topic()), zap.Error(err))
		n.cfg.Metrics.ObserveEvent("failed")
		return
	}
	n.log.Info("recommendation event published",
		zap.String("topic", pub.Topic()),
		zap.String("event_id", p.event.EventID),
		zap.String("fertilizer", p.event.Fertilizer),
	)
	n.cfg.Metrics.ObserveEvent("published")
}
