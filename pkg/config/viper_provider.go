package config

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/scoir/canis-webhooks/pkg/framework"
)

const (
	defaultAMQP       = "canis-amqp-config"
	defaultEventStore = "canis-event-store-config"
)

// Option configures the config...
type Option func(opts *vpr)

// WithFile merges the given file instead of the default config name.
func WithFile(file string) Option {
	return func(opts *vpr) {
		opts.file = file
	}
}

type ViperConfigProvider struct {
	DefaultConfigName string
}

type vpr struct {
	*viper.Viper
	file string
}

func (r *ViperConfigProvider) Load(file string) Config {
	config := &vpr{
		viper.New(),
		"",
	}

	if file != "" {
		config.SetConfigFile(file)
	} else {
		config.SetConfigType("yaml")
		config.AddConfigPath("/etc/canis/")
		config.AddConfigPath("./deploy/compose/")
		config.SetConfigName(r.DefaultConfigName)
	}

	config.SetEnvPrefix("CANIS")
	config.AutomaticEnv()

	err := config.BindPFlags(pflag.CommandLine)
	if err != nil {
		log.Fatalln("failed to bind flags", err)
	}

	err = config.ReadInConfig()
	if err != nil {
		log.Fatalln("failed to read config after merge", config.ConfigFileUsed(), err)
	}

	return config
}

func (r *vpr) WithEventStore(opts ...Option) Config {
	for _, opt := range opts {
		opt(r)
	}

	return r.with(r.file, defaultEventStore)
}

func (r *vpr) WithAMQP(opts ...Option) Config {
	for _, opt := range opts {
		opt(r)
	}

	return r.with(r.file, defaultAMQP)
}

func (r *vpr) with(file, defawlt string) Config {
	if file != "" {
		return r.withFile(r.SetConfigFile, file)
	}

	return r.withFile(r.SetConfigName, defawlt)
}

func (r *vpr) withFile(setter func(name string), file string) Config {
	setter(file)

	err := r.MergeInConfig()
	if err != nil {
		log.Fatalln("failed to merge", r.ConfigFileUsed(), err)
	}

	r.file = ""
	return r
}

func (r *vpr) AMQPAddress() string {
	amqpUser := r.GetString("amqp.user")
	amqpPwd := r.GetString("amqp.password")
	amqpHost := r.GetString("amqp.host")
	amqpPort := r.GetInt("amqp.port")
	amqpVHost := r.GetString("amqp.vhost")

	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", amqpUser, amqpPwd, amqpHost, amqpPort, amqpVHost)
}

// AMQPConfig returns nil without error when no amqp section is configured.
func (r *vpr) AMQPConfig() (*framework.AMQPConfig, error) {
	if !r.IsSet("amqp") {
		return nil, nil
	}

	config := &framework.AMQPConfig{}

	err := r.UnmarshalKey("amqp", config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (r *vpr) EventStore() (*framework.EventStoreConfig, error) {
	ec := &framework.EventStoreConfig{}

	err := r.UnmarshalKey("eventstore", ec)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load event store config")
	}

	return ec, nil
}

func (r *vpr) Webhooks() (*framework.WebhooksConfig, error) {
	wc := &framework.WebhooksConfig{}

	err := r.UnmarshalKey("webhooks", wc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load webhooks config")
	}

	return wc, nil
}

// SSE returns the stream settings with defaults applied. An explicit
// sse.lookBack of 0 is kept and disables history.
func (r *vpr) SSE() (*framework.SSEConfig, error) {
	sc := framework.SSEConfig{}

	err := r.UnmarshalKey("sse", &sc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sse config")
	}

	out := sc.WithDefaults()
	if r.IsSet("sse.lookBack") && sc.LookBack == 0 {
		out.LookBack = 0
	}

	return out, nil
}

func (r *vpr) Log() *framework.LogConfig {
	return &framework.LogConfig{
		Level:  r.GetString("log.level"),
		Format: r.GetString("log.format"),
	}
}

// GetString uses Get because recursion
func (r *vpr) GetString(s string) string {
	ret, _ := r.Get(s).(string)

	return ret
}

// GetString uses Get because same recursion
func (r *vpr) GetInt(s string) int {
	ret, _ := r.Get(s).(int)

	return ret
}

func (r *vpr) Endpoint(key string) (*framework.Endpoint, error) {
	ep := &framework.Endpoint{}

	err := r.UnmarshalKey(key, ep)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load key "+key)
	}

	return ep, nil
}
