package natsbus

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/collection"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/config"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupNATS starts a NATS server container and returns its client URL.
func setupNATS(t *testing.T) (string, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	url, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)

	return url, func() { _ = container.Terminate(ctx) }
}

type fakeHandler struct {
	mu      sync.Mutex
	commits []syncqueue.CommitRequest
	delay   time.Duration
}

func (h *fakeHandler) Roll(ctx context.Context, req outcome.RollRequest) (*outcome.Decision, error) {
	if req.Username == "broke" {
		return nil, service.ErrInsufficientOrbs
	}
	orbs := int64(9)
	card := model.Card{ID: req.CardID, Tier: model.TierT0, Foil: req.Foil}
	return &outcome.Decision{
		Kind: outcome.KindDuplicate,
		Card: card,
		Updates: map[string]model.CardDelta{
			req.CardID: {NormalDelta: 1},
		},
		CurrencyDelta: -outcome.OrbCost,
		VaalOrbs:      &orbs,
	}, nil
}

func (h *fakeHandler) Commit(ctx context.Context, req syncqueue.CommitRequest) error {
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if req.Username == "stale" {
		return service.ErrConflict
	}
	if req.Username == "flaky" {
		return errors.New("connection reset")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commits = append(h.commits, req)
	return nil
}

func (h *fakeHandler) Collection(ctx context.Context, username string) (*service.Collection, error) {
	if username == "" {
		return nil, service.ErrInvalidUser
	}
	return &service.Collection{
		Username: username,
		VaalOrbs: 5,
		Entries: []model.CollectionEntry{
			{CardID: "headhunter", NormalCount: 2, FoilCount: 1, Card: &model.Card{ID: "headhunter", Tier: model.TierT0}},
		},
	}, nil
}

func (h *fakeHandler) committed() []syncqueue.CommitRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]syncqueue.CommitRequest(nil), h.commits...)
}

func setupBus(t *testing.T, h *fakeHandler) (*Client, func()) {
	url, stopNATS := setupNATS(t)

	serverConn, err := Connect(&config.NATSConfig{URL: url, Name: "altar-server", ReconnectWait: time.Second})
	require.NoError(t, err)
	srv := NewServer(serverConn, h, "altar-workers", 5*time.Second)
	require.NoError(t, srv.Start())

	clientConn, err := nats.Connect(url)
	require.NoError(t, err)

	return NewClient(clientConn, 2*time.Second), func() {
		clientConn.Close()
		_ = srv.Stop()
		serverConn.Close()
		stopNATS()
	}
}

func TestClient_RollAndCollection(t *testing.T) {
	h := &fakeHandler{}
	client, cleanup := setupBus(t, h)
	defer cleanup()
	ctx := context.Background()

	d, err := client.Roll(ctx, outcome.RollRequest{OperationID: "op-1", Username: "alice", CardID: "headhunter"})
	require.NoError(t, err)
	assert.Equal(t, outcome.KindDuplicate, d.Kind)
	assert.Equal(t, 1, d.Updates["headhunter"].NormalDelta)
	require.NotNil(t, d.VaalOrbs)
	assert.Equal(t, int64(9), *d.VaalOrbs)

	_, err = client.Roll(ctx, outcome.RollRequest{Username: "broke", CardID: "headhunter"})
	var remote *syncqueue.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, service.CodeInsufficientOrbs, remote.Code)
	assert.False(t, remote.Retryable)

	col, err := client.Collection(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), col.VaalOrbs)
	require.Len(t, col.Entries, 1)
	assert.Equal(t, 2, col.Entries[0].NormalCount)
	require.NotNil(t, col.Entries[0].Card)

	_, err = client.Collection(ctx, "")
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, service.CodeInvalidUser, remote.Code)
}

func TestClient_AsQueueCommitter(t *testing.T) {
	h := &fakeHandler{}
	client, cleanup := setupBus(t, h)
	defer cleanup()
	ctx := context.Background()

	state := collection.New(3, map[string]collection.Entry{"headhunter": {Normal: 1}})
	q := syncqueue.New(state, client, syncqueue.DefaultOptions())
	defer q.Close()

	p, err := q.Enqueue(syncqueue.Operation{
		ID:            "op-1",
		Username:      "alice",
		CurrencyDelta: -1,
		OutcomeKind:   "foil",
		CardUpdates:   map[string]model.CardDelta{"headhunter": {NormalDelta: -1, FoilDelta: 1}},
	})
	require.NoError(t, err)
	res, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Collection.Entry("headhunter").Foil)

	commits := h.committed()
	require.Len(t, commits, 1)
	assert.Equal(t, "op-1", commits[0].OperationID)
	require.Len(t, commits[0].Cards, 1)
	assert.Equal(t, 0, commits[0].Cards[0].NormalCount)
	assert.Equal(t, 1, commits[0].Cards[0].FoilCount)

	stale := collection.New(3, map[string]collection.Entry{"headhunter": {Normal: 1}})
	sq := syncqueue.New(stale, client, syncqueue.DefaultOptions())
	defer sq.Close()

	p, err = sq.Enqueue(syncqueue.Operation{
		Username:      "stale",
		CurrencyDelta: -1,
		CardUpdates:   map[string]model.CardDelta{"headhunter": {NormalDelta: 1}},
	})
	require.NoError(t, err)
	_, err = p.Wait(ctx)
	var serr *syncqueue.SyncError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, service.CodeConflict, serr.Code)
	assert.False(t, serr.Retryable)
	assert.Equal(t, int64(3), stale.Currency())
	e, _ := stale.Entry("headhunter")
	assert.Equal(t, 1, e.Normal)
}

func TestClient_ErrorsClassify(t *testing.T) {
	h := &fakeHandler{delay: 500 * time.Millisecond}
	client, cleanup := setupBus(t, h)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.Commit(ctx, syncqueue.CommitRequest{OperationID: "op-1", Username: "alice", CurrencyDelta: -1})
	retryable, code := syncqueue.Classify(err)
	assert.True(t, retryable)
	assert.Equal(t, syncqueue.CodeTimeout, code)

	err = client.Commit(context.Background(), syncqueue.CommitRequest{OperationID: "op-2", Username: "flaky", CurrencyDelta: -1})
	var remote *syncqueue.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, service.CodeInternal, remote.Code)
	assert.True(t, remote.Retryable)
}
