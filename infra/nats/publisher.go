// Package nats publishes execution reports to a NATS subject.
package nats

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"
)

type Publisher struct {
	conn         *nats.Conn
	subject      string
	flushTimeout time.Duration
}

func Connect(url, subject string, flushTimeout time.Duration) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("lob-reports"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats %s", url)
	}
	if flushTimeout <= 0 {
		flushTimeout = 2 * time.Second
	}
	return &Publisher{conn: conn, subject: subject, flushTimeout: flushTimeout}, nil
}

// Publish sends the report and flushes, so a nil error means the server
// has it. The key travels as Nats-Msg-Id for JetStream deduplication.
func (p *Publisher) Publish(ctx context.Context, key, value []byte) error {
	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, string(key))
	msg.Data = value
	if err := p.conn.PublishMsg(msg); err != nil {
		return errors.Wrapf(err, "nats publish to %s", p.subject)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.flushTimeout)
		defer cancel()
	}
	return errors.Wrap(p.conn.FlushWithContext(ctx), "nats flush")
}

func (p *Publisher) Close() error {
	return p.conn.Drain()
}
