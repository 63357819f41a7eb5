// Package export streams the entities a report run creates to Kafka.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/hootmeow/openvas-strix/internal/plugin"
)

// Event types.
const (
	EventHost    = "host"
	EventService = "service"
	EventVuln    = "vuln"
	EventWebVuln = "web_vuln"
)

// MessageWriter is the part of *kafka.Writer the exporter needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer publishing to topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
}

// Event is the envelope written for every created entity.
type Event struct {
	Type      string    `json:"type"`
	ReportID  string    `json:"report_id"`
	ID        string    `json:"id,omitempty"`
	HostID    string    `json:"host_id,omitempty"`
	ServiceID string    `json:"service_id,omitempty"`
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload"`
}

type HostPayload struct {
	IP        string   `json:"ip"`
	Hostnames []string `json:"hostnames"`
}

type ServicePayload struct {
	Name     string   `json:"name"`
	Protocol string   `json:"protocol"`
	Ports    []string `json:"ports"`
}

type VulnPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Resolution  string   `json:"resolution"`
	References  []string `json:"references"`
	Website     string   `json:"website,omitempty"`
}

// Exporter hands out one KafkaSink per run.
type Exporter struct {
	writer MessageWriter
}

func NewExporter(w MessageWriter) *Exporter {
	return &Exporter{writer: w}
}

// SinkFor returns a sink publishing the run's entities.
func (e *Exporter) SinkFor(run *plugin.RunContext) plugin.Sink {
	return &KafkaSink{writer: e.writer, reportID: run.ReportID}
}

func (e *Exporter) Close() error {
	return e.writer.Close()
}

// KafkaSink publishes each Sink call as one message keyed by report ID, so a
// report's events stay on one partition in order.
type KafkaSink struct {
	writer   MessageWriter
	reportID string
	now      func() time.Time
}

var _ plugin.Sink = (*KafkaSink)(nil)

func (k *KafkaSink) CreateHost(ctx context.Context, ip string, hostnames []string) (string, error) {
	id := uuid.NewString()
	err := k.publish(ctx, Event{
		Type:    EventHost,
		ID:      id,
		Payload: HostPayload{IP: ip, Hostnames: hostnames},
	})
	return id, err
}

func (k *KafkaSink) CreateServiceOnHost(ctx context.Context, hostID, name, protocol string, ports []string) (string, error) {
	id := uuid.NewString()
	err := k.publish(ctx, Event{
		Type:    EventService,
		ID:      id,
		HostID:  hostID,
		Payload: ServicePayload{Name: name, Protocol: protocol, Ports: ports},
	})
	return id, err
}

func (k *KafkaSink) CreateVulnOnHost(ctx context.Context, hostID string, v plugin.Vuln) error {
	return k.publish(ctx, Event{
		Type:    EventVuln,
		HostID:  hostID,
		Payload: vulnPayload(v, ""),
	})
}

func (k *KafkaSink) CreateWebVulnOnService(ctx context.Context, hostID, serviceID string, v plugin.WebVuln) error {
	return k.publish(ctx, Event{
		Type:      EventWebVuln,
		HostID:    hostID,
		ServiceID: serviceID,
		Payload:   vulnPayload(v.Vuln, v.Website),
	})
}

func (k *KafkaSink) CreateVulnOnService(ctx context.Context, hostID, serviceID string, v plugin.Vuln) error {
	return k.publish(ctx, Event{
		Type:      EventVuln,
		HostID:    hostID,
		ServiceID: serviceID,
		Payload:   vulnPayload(v, ""),
	})
}

func (k *KafkaSink) publish(ctx context.Context, ev Event) error {
	ev.ReportID = k.reportID
	if k.now != nil {
		ev.Time = k.now()
	} else {
		ev.Time = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.reportID),
		Value: data,
		Time:  ev.Time,
	}); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

func vulnPayload(v plugin.Vuln, website string) VulnPayload {
	refs := v.References
	if refs == nil {
		refs = []string{}
	}
	return VulnPayload{
		Name:        v.Name,
		Description: v.Description,
		Severity:    v.Severity,
		Resolution:  v.Resolution,
		References:  refs,
		Website:     website,
	}
}
