package natsx

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"socialchat/tools/errs"
)

// NatsxMode selects how messages are published.
type NatsxMode int

const (
	Core      NatsxMode = iota // fire and forget
	JetStream                  // acked by a stream
)

// NatsxConfig is the client configuration.
type NatsxConfig struct {
	Servers         []string
	Name            string
	Mode            NatsxMode
	ReconnectWait   time.Duration
	Timeout         time.Duration
	PublishAsyncMax int
}

// NatsxClient wraps one connection and, in JetStream mode, its context.
type NatsxClient struct {
	cfg NatsxConfig
	nc  *nats.Conn
	js  nats.JetStreamContext
}

// NewNatsxClient connects to NATS with unlimited reconnects.
func NewNatsxClient(cfg NatsxConfig) (*NatsxClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.PublishAsyncMax == 0 {
		cfg.PublishAsyncMax = 4096
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", cfg.Servers)
	}
	c := &NatsxClient{cfg: cfg, nc: nc}
	if cfg.Mode == JetStream {
		if err := c.ensureJS(); err != nil {
			nc.Close()
			return nil, errs.WrapMsg(err, "init jetstream")
		}
	}
	return c, nil
}

// Close drains pending publishes before closing.
func (c *NatsxClient) Close() error {
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

func (c *NatsxClient) ensureJS() error {
	if c.js != nil {
		return nil
	}
	js, err := c.nc.JetStream(nats.PublishAsyncMaxPending(c.cfg.PublishAsyncMax))
	if err != nil {
		return err
	}
	c.js = js
	return nil
}

func (c *NatsxClient) send(ctx context.Context, msg *nats.Msg) error {
	if c.cfg.Mode == JetStream {
		if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
			return errs.WrapMsg(err, "jetstream publish", "subject", msg.Subject)
		}
		return nil
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return errs.WrapMsg(err, "publish", "subject", msg.Subject)
	}
	return nil
}
