/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scoir/canis-webhooks/pkg/events"
	"github.com/scoir/canis-webhooks/pkg/util"
)

const (
	DefaultRetries    = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultTimeout    = 60 * time.Second

	dataPrefix = "data:"
)

var errStreamEnded = errors.New("event stream ended without a matching event")

// Listener waits for single events of one wallet topic over the webhooks
// service SSE endpoints. Every wait opens its own stream.
type Listener struct {
	baseURL  string
	walletID string
	topic    events.Topic
	client   *http.Client
	retries  uint64
	delay    time.Duration
	lookBack *time.Duration
}

type Option func(l *Listener)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Listener) {
		l.client = c
	}
}

// WithRetries sets how many times a failed connection is retried.
func WithRetries(n uint64) Option {
	return func(l *Listener) {
		l.retries = n
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(l *Listener) {
		l.delay = d
	}
}

// WithLookBack overrides the service's default lookback window.
func WithLookBack(d time.Duration) Option {
	return func(l *Listener) {
		l.lookBack = &d
	}
}

func NewListener(baseURL, walletID string, topic events.Topic, opts ...Option) *Listener {
	l := &Listener{
		baseURL:  strings.TrimRight(baseURL, "/"),
		walletID: walletID,
		topic:    topic,
		client:   &http.Client{},
		retries:  DefaultRetries,
		delay:    DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// WaitForState returns the payload of the first event reaching desiredState.
func (r *Listener) WaitForState(ctx context.Context, desiredState string, timeout time.Duration) (events.Payload, error) {
	to := &events.EventWaitTimeout{
		WalletID:     r.walletID,
		Topic:        r.topic,
		DesiredState: desiredState,
	}

	return r.wait(ctx, to, timeout, desiredState)
}

// WaitForEvent returns the payload of the first event whose field equals
// fieldID and whose state is desiredState.
func (r *Listener) WaitForEvent(ctx context.Context, field, fieldID, desiredState string, timeout time.Duration) (events.Payload, error) {
	if field == "" || fieldID == "" {
		return nil, errors.New("field and field id are required")
	}

	to := &events.EventWaitTimeout{
		WalletID:     r.walletID,
		Topic:        r.topic,
		Field:        field,
		FieldID:      fieldID,
		DesiredState: desiredState,
	}

	return r.wait(ctx, to, timeout, field, fieldID, desiredState)
}

func (r *Listener) wait(ctx context.Context, to *events.EventWaitTimeout, timeout time.Duration, segments ...string) (events.Payload, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	to.Timeout = timeout

	u, err := r.streamURL(segments...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var payload events.Payload
	op := func() error {
		p, err := r.listen(ctx, u)
		if err != nil {
			if ctx.Err() != nil || err == errStreamEnded {
				return backoff.Permanent(err)
			}
			return err
		}

		payload = p
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), r.retries), ctx)
	err = backoff.RetryNotify(op, b, util.Logger)
	if err == nil {
		return payload, nil
	}

	if err == errStreamEnded || ctx.Err() == context.DeadlineExceeded {
		return nil, to
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return nil, errors.Wrapf(err, "unable to listen for %s events", r.topic)
}

func (r *Listener) streamURL(segments ...string) (string, error) {
	if r.walletID == "" {
		return "", errors.New("wallet id is required")
	}

	parts := []string{r.baseURL, "sse", url.PathEscape(r.walletID), url.PathEscape(string(r.topic))}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	u := strings.Join(parts, "/")

	if r.lookBack != nil {
		u += "?look_back=" + strconv.FormatFloat(r.lookBack.Seconds(), 'f', -1, 64)
	}

	return u, nil
}

// listen opens one stream and reads until the first data frame.
func (r *Listener) listen(ctx context.Context, u string) (events.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "invalid request"))
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open event stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.Errorf("event stream unavailable: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(errors.Errorf("event stream rejected: %s", resp.Status))
	}

	fields := log.Fields{"wallet_id": r.walletID, "topic": r.topic}
	br := bufio.NewReader(resp.Body)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err == io.EOF {
				return nil, errStreamEnded
			}
			return nil, errors.Wrap(err, "event stream read failed")
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "" || strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, dataPrefix):
			p, err := decodeData(strings.TrimSpace(line[len(dataPrefix):]))
			if err != nil {
				log.WithFields(fields).WithError(err).Warn("undecodable event data")
				continue
			}
			return p, nil
		default:
			log.WithFields(fields).WithField("line", line).Warn("unexpected event stream line")
		}
	}
}

func decodeData(data string) (events.Payload, error) {
	msg := &struct {
		Payload events.Payload `json:"payload"`
	}{}

	err := json.Unmarshal([]byte(data), msg)
	if err != nil {
		return nil, errors.Wrap(err, "invalid event json")
	}
	if msg.Payload == nil {
		return nil, errors.New("event has no payload")
	}

	return msg.Payload, nil
}
