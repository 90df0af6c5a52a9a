package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/messaging"
)

const defaultSubjectPrefix = "resolution"

// NATSAdapter publishes events on "<prefix>.<family>.<event type>". The
// connection is opened on first use and kept until Close.
type NATSAdapter struct {
	config messaging.AdapterConfig
	prefix string

	mu   sync.Mutex
	conn *nats.Conn
}

func NewNATSAdapter(config messaging.AdapterConfig) *NATSAdapter {
	return &NATSAdapter{
		config: config,
		prefix: strings.TrimSuffix(config.Option("subject_prefix", defaultSubjectPrefix), "."),
	}
}

func (a *NATSAdapter) Name() string { return a.config.Name }
func (a *NATSAdapter) Type() string { return messaging.TypeNATS }

// Subject is the subject an event is published on.
func (a *NATSAdapter) Subject(event *events.BaseEvent) string {
	family := event.FamilyID
	if family == "" {
		family = "_"
	}
	return fmt.Sprintf("%s.%s.%s", a.prefix, family, event.Type)
}

func (a *NATSAdapter) Send(ctx context.Context, event *events.BaseEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := a.connect()
	if err != nil {
		return err
	}
	data, err := json.Marshal(newPayload(event))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := conn.Publish(a.Subject(event), data); err != nil {
		return fmt.Errorf("publish to nats: %w", err)
	}
	return nil
}

func (a *NATSAdapter) connect() (*nats.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil && !a.conn.IsClosed() {
		return a.conn, nil
	}
	url := a.config.URL
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name("resolution-" + a.config.Name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5 * time.Second),
	}
	if a.config.Secret != "" {
		opts = append(opts, nats.Token(a.config.Secret))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	a.conn = conn
	return conn, nil
}

// Close drains the connection if one was opened.
func (a *NATSAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Drain()
	a.conn = nil
	return err
}
