package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/iowathe3rd/admissions-agent/internal/generation"
)

// QdrantPinger reports readiness of the Qdrant vector database backing the
// knowledge base index.
type QdrantPinger struct {
	// Client is the shared Qdrant client used by the vector store.
	Client *qdrant.Client
}

// Name identifies the dependency as "qdrant" in readiness responses.
func (p QdrantPinger) Name() string { return "qdrant" }

// Ping issues a gRPC health check against the Qdrant instance.
func (p QdrantPinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return errors.New("qdrant client not configured")
	}
	if _, err := p.Client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// GatewayPinger reports whether the generation gateway has a live chat model.
// It performs no network call: a gateway without a model serves fallback
// answers only, which is a degraded state worth surfacing in /api/ready.
type GatewayPinger struct {
	// Gateway is the generation gateway to inspect.
	Gateway *generation.Gateway
}

// Name identifies the dependency as "generator" in readiness responses.
func (p GatewayPinger) Name() string { return "generator" }

// Ping fails when the gateway has no configured chat model.
func (p GatewayPinger) Ping(_ context.Context) error {
	if p.Gateway == nil || !p.Gateway.Ready() {
		return errors.New("chat model not configured")
	}
	return nil
}
