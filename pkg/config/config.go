package config

import "github.com/scoir/canis-webhooks/pkg/framework"

// Provider rename to ConfigBuilder
type Provider interface {
	Load(file string) Config
}

// Config
type Config interface {
	WithAMQP(opts ...Option) Config
	AMQPAddress() string
	AMQPConfig() (*framework.AMQPConfig, error)

	WithEventStore(opts ...Option) Config
	EventStore() (*framework.EventStoreConfig, error)

	Webhooks() (*framework.WebhooksConfig, error)
	SSE() (*framework.SSEConfig, error)
	Log() *framework.LogConfig

	GetString(s string) string
	GetInt(s string) int

	Endpoint(s string) (*framework.Endpoint, error)
}
