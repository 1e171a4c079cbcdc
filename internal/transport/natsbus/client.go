package natsbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/config"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

// Connect opens a NATS connection configured from cfg.
func Connect(cfg *config.NATSConfig) (*nats.Conn, error) {
	name := cfg.Name
	if name == "" {
		name = "altar"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Str("name", name).Msg("Connected to NATS")
	return nc, nil
}

// Client talks to the altar server. It is the remote committer of a sync
// queue and the authoritative outcome source of an altar client.
type Client struct {
	nc      *nats.Conn
	timeout time.Duration
}

var (
	_ syncqueue.Committer         = (*Client)(nil)
	_ outcome.AuthoritativeSource = (*Client)(nil)
)

// NewClient creates a client on nc. timeout bounds requests whose context
// carries no deadline.
func NewClient(nc *nats.Conn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{nc: nc, timeout: timeout}
}

// Commit sends a settled client-side operation to the server.
func (c *Client) Commit(ctx context.Context, req syncqueue.CommitRequest) error {
	return c.request(ctx, SubjectCommit, req, nil)
}

// Roll asks the server to decide and apply a vaal.
func (c *Client) Roll(ctx context.Context, req outcome.RollRequest) (*outcome.Decision, error) {
	var d outcome.Decision
	if err := c.request(ctx, SubjectRoll, req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Collection fetches the user's orb balance and cards.
func (c *Client) Collection(ctx context.Context, username string) (*service.Collection, error) {
	var col service.Collection
	if err := c.request(ctx, SubjectCollection, CollectionRequest{Username: username}, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (c *Client) request(ctx context.Context, subject string, payload, out any) error {
	data, err := marshal(payload)
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return fmt.Errorf("request %s: %w: %w", subject, context.DeadlineExceeded, err)
		}
		return fmt.Errorf("request %s: %w", subject, err)
	}
	return decodeReply(msg.Data, out)
}
