// Package pubsub implements a Google Cloud Pub/Sub notifier.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	gpubsub "cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Notifier publishes JSON payloads to Pub/Sub topics, caching one handle per topic.
type Notifier struct {
	client *gpubsub.Client

	mu     sync.Mutex
	topics map[string]*gpubsub.Topic
}

// New wraps an existing client.
func New(client *gpubsub.Client) *Notifier {
	return &Notifier{client: client, topics: map[string]*gpubsub.Topic{}}
}

// Dial creates a client for projectID. Options allow pointing at an emulator.
func Dial(ctx context.Context, projectID string, opts ...option.ClientOption) (*Notifier, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id is required")
	}
	client, err := gpubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return New(client), nil
}

// Publish marshals the payload to JSON and waits for the server-assigned message ID.
func (n *Notifier) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if n.client == nil {
		return "", fmt.Errorf("pubsub client is not configured")
	}
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &gpubsub.Message{
		Data:       data,
		Attributes: map[string]string{"content_type": "application/json"},
	}
	id, err := n.topic(topic).Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (n *Notifier) Close() error {
	n.mu.Lock()
	for _, t := range n.topics {
		t.Stop()
	}
	n.topics = map[string]*gpubsub.Topic{}
	n.mu.Unlock()
	if n.client == nil {
		return nil
	}
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

func (n *Notifier) topic(id string) *gpubsub.Topic {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.topics[id]; ok {
		return t
	}
	t := n.client.Topic(id)
	n.topics[id] = t
	return t
}
