/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package framework

import (
	"fmt"
	"time"
)

type Endpoint struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

func (r Endpoint) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AMQPConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	VHost    string `mapstructure:"vhost"`
	Exchange string `mapstructure:"exchange"`
}

func (r *AMQPConfig) Endpoint() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", r.User, r.Password, r.Host, r.Port, r.VHost)
}

// Enabled reports whether events should be relayed between processes.
func (r *AMQPConfig) Enabled() bool {
	return r != nil && r.Host != ""
}

type SSEConfig struct {
	PingPeriod  time.Duration `mapstructure:"pingPeriod"`
	MaxDuration time.Duration `mapstructure:"maxDuration"`
	LookBack    time.Duration `mapstructure:"lookBack"`
	WaitTimeout time.Duration `mapstructure:"waitTimeout"`
	BufferSize  int           `mapstructure:"bufferSize"`
}

// WithDefaults fills unset values. A zero LookBack counts as unset.
func (r SSEConfig) WithDefaults() *SSEConfig {
	if r.PingPeriod <= 0 {
		r.PingPeriod = 15 * time.Second
	}
	if r.MaxDuration <= 0 {
		r.MaxDuration = 150 * time.Second
	}
	if r.LookBack <= 0 {
		r.LookBack = 5 * time.Second
	}
	if r.WaitTimeout <= 0 {
		r.WaitTimeout = 60 * time.Second
	}
	if r.BufferSize <= 0 {
		r.BufferSize = 64
	}

	return &r
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type WebhooksConfig struct {
	HTTP      Endpoint   `mapstructure:"http"`
	QueueSize int        `mapstructure:"queueSize"`
	CORS      CORSConfig `mapstructure:"cors"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
