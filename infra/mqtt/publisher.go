// Package mqtt publishes computed route schedules to an MQTT broker so that
// driver tablets and school displays can follow changes as they happen.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/busroute/core/events"
	coremon "github.com/kilianp07/busroute/core/monitoring"
	"github.com/kilianp07/busroute/infra/logger"
	"github.com/kilianp07/busroute/internal/eventbus"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// SchedulePublisher pushes schedule and route change events to the broker.
type SchedulePublisher struct {
	cli     pahoClient
	cfg     Config
	backoff time.Duration
	log     logger.Logger
	mon     coremon.Monitor
}

// StopPayload is the wire form of one scheduled stop.
type StopPayload struct {
	StopID    int64     `json:"stop_id"`
	Order     int       `json:"order"`
	Name      string    `json:"name"`
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
}

// SchedulePayload is published on {prefix}/routes/{id}/schedule.
type SchedulePayload struct {
	RequestID string        `json:"request_id"`
	RouteID   int64         `json:"route_id"`
	StartTime string        `json:"start_time"`
	Stops     []StopPayload `json:"stops"`
	Stale     bool          `json:"stale"`
	At        time.Time     `json:"at"`
}

// NewSchedulePublisher connects to the broker described by cfg.
func NewSchedulePublisher(cfg Config, mon coremon.Monitor) (*SchedulePublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &SchedulePublisher{
		cli:     c,
		cfg:     cfg,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:     log,
		mon:     coremon.OrNop(mon),
	}, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, true)
	}
	return opts, nil
}

// ScheduleTopic returns the topic carrying the schedule of routeID.
func (p *SchedulePublisher) ScheduleTopic(routeID int64) string {
	return fmt.Sprintf("%s/routes/%d/schedule", p.cfg.TopicPrefix, routeID)
}

// EventTopic returns the topic carrying change notifications for routeID.
func (p *SchedulePublisher) EventTopic(routeID int64) string {
	return fmt.Sprintf("%s/routes/%d/events", p.cfg.TopicPrefix, routeID)
}

// PublishSchedule sends the computed schedule. A failed persistence still
// publishes the computed values, flagged as stale.
func (p *SchedulePublisher) PublishSchedule(ev events.ScheduleRecomputed) error {
	payload := SchedulePayload{
		RequestID: ev.RequestID,
		RouteID:   ev.RouteID,
		StartTime: ev.StartTime,
		Stale:     ev.Err != nil,
		At:        ev.At,
		Stops:     make([]StopPayload, 0, len(ev.Stops)),
	}
	for _, s := range ev.Stops {
		payload.Stops = append(payload.Stops, StopPayload{
			StopID:    s.ID,
			Order:     s.StopOrder,
			Name:      s.Name,
			Arrival:   s.EstimatedArrival,
			Departure: s.EstimatedDeparture,
		})
	}
	return p.publish(p.ScheduleTopic(ev.RouteID), ev.RouteID, payload, p.cfg.Retain)
}

// PublishChange sends a route change notification.
func (p *SchedulePublisher) PublishChange(ev events.RouteChanged) error {
	return p.publish(p.EventTopic(ev.RouteID), ev.RouteID, ev, false)
}

func (p *SchedulePublisher) publish(topic string, routeID int64, v any, retain bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.QoS, retain, data)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Debugw("published", map[string]any{"topic": topic, "route_id": routeID})
			return nil
		}
		p.log.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.cfg.MaxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	p.mon.CaptureException(publishErr, map[string]string{
		"module":   "mqtt",
		"topic":    topic,
		"route_id": fmt.Sprint(routeID),
	})
	return publishErr
}

// Run forwards bus events to the broker until ctx is canceled or both buses close.
func (p *SchedulePublisher) Run(ctx context.Context,
	schedules *eventbus.TypedBus[events.ScheduleRecomputed],
	changes *eventbus.TypedBus[events.RouteChanged]) {
	var schedCh <-chan events.ScheduleRecomputed
	var changeCh <-chan events.RouteChanged
	if schedules != nil {
		schedCh = schedules.Subscribe()
		defer schedules.Unsubscribe(schedCh)
	}
	if changes != nil {
		changeCh = changes.Subscribe()
		defer changes.Unsubscribe(changeCh)
	}
	for schedCh != nil || changeCh != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-schedCh:
			if !ok {
				schedCh = nil
				continue
			}
			_ = p.PublishSchedule(ev)
		case ev, ok := <-changeCh:
			if !ok {
				changeCh = nil
				continue
			}
			_ = p.PublishChange(ev)
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *SchedulePublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
