// Package nats implements the events port using NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/imagingworks/protoloop/internal/port/events"
)

const streamName = "PROTOLOOP"

// Publisher emits pipeline run events on JetStream subjects under
// pipeline.runs.<runID>.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"pipeline.runs.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Publisher{nc: nc, js: js}, nil
}

func (p *Publisher) PublishIteration(ctx context.Context, evt events.IterationEvent) error {
	return p.publish(ctx, fmt.Sprintf("pipeline.runs.%s.iteration", evt.RunID), evt)
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, evt events.RunCompletedEvent) error {
	return p.publish(ctx, fmt.Sprintf("pipeline.runs.%s.completed", evt.RunID), evt)
}

func (p *Publisher) publish(ctx context.Context, subject string, evt any) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("nats encode %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (p *Publisher) Close() error {
	p.nc.Close()
	return nil
}
