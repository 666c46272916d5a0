// Package events publishes dashboard refresh notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DashboardUpdated is emitted after every completed aggregation cycle.
type DashboardUpdated struct {
	FarmID      string     `json:"farmId"`
	CycleID     string     `json:"cycleId"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Error       *string    `json:"error"`
}

// Publisher delivers dashboard events.
type Publisher interface {
	Publish(ctx context.Context, ev DashboardUpdated) error
}

// Subject returns the NATS subject for a farm's updates.
func Subject(farmID string) string {
	return "dashboard.updated." + farmID
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DashboardUpdated) error { return nil }

// NATSPublisher publishes events as JSON on dashboard.updated.<farmId>.
type NATSPublisher struct {
	conn *nats.Conn
	log  *zap.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name("cropple-dashboard"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn, log: log}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, ev DashboardUpdated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(Subject(ev.FarmID), data); err != nil {
		return fmt.Errorf("publish %s: %w", Subject(ev.FarmID), err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
