package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

// Handler serves altar requests. *service.AltarService implements it.
type Handler interface {
	Roll(ctx context.Context, req outcome.RollRequest) (*outcome.Decision, error)
	Commit(ctx context.Context, req syncqueue.CommitRequest) error
	Collection(ctx context.Context, username string) (*service.Collection, error)
}

// Server subscribes a Handler to the altar subjects. Instances sharing a
// queue group split the load.
type Server struct {
	nc         *nats.Conn
	handler    Handler
	queueGroup string
	timeout    time.Duration
	subs       []*nats.Subscription
}

// NewServer creates a Server. timeout bounds the handling of one request.
func NewServer(nc *nats.Conn, h Handler, queueGroup string, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Server{nc: nc, handler: h, queueGroup: queueGroup, timeout: timeout}
}

// Start subscribes to every altar subject.
func (s *Server) Start() error {
	routes := map[string]func(context.Context, []byte) []byte{
		SubjectRoll:       s.roll,
		SubjectCommit:     s.commit,
		SubjectCollection: s.collection,
	}
	for subject, fn := range routes {
		sub, err := s.nc.QueueSubscribe(subject, s.queueGroup, s.serve(subject, fn))
		if err != nil {
			_ = s.Stop()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	if err := s.nc.Flush(); err != nil {
		_ = s.Stop()
		return fmt.Errorf("failed to flush subscriptions: %w", err)
	}
	log.Info().Str("queue_group", s.queueGroup).Int("subjects", len(s.subs)).Msg("Altar server listening")
	return nil
}

// Stop drains every subscription so in-flight requests still get a reply.
func (s *Server) Stop() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.subs = nil
	return firstErr
}

func (s *Server) serve(subject string, fn func(context.Context, []byte) []byte) nats.MsgHandler {
	return func(m *nats.Msg) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		reply := fn(ctx, m.Data)
		if m.Reply == "" {
			return
		}
		if err := m.Respond(reply); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("Failed to send reply")
			return
		}
		log.Debug().Str("subject", subject).Dur("took", time.Since(start)).Msg("Request served")
	}
}

func (s *Server) roll(ctx context.Context, data []byte) []byte {
	var req outcome.RollRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply(CodeInvalidRequest, err)
	}
	d, err := s.handler.Roll(ctx, req)
	return encodeReply(d, err)
}

func (s *Server) commit(ctx context.Context, data []byte) []byte {
	var req syncqueue.CommitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply(CodeInvalidRequest, err)
	}
	return encodeReply(nil, s.handler.Commit(ctx, req))
}

func (s *Server) collection(ctx context.Context, data []byte) []byte {
	var req CollectionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply(CodeInvalidRequest, err)
	}
	col, err := s.handler.Collection(ctx, req.Username)
	return encodeReply(col, err)
}
