package natsbus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

func TestReply_RoundTripsData(t *testing.T) {
	orbs := int64(4)
	b := encodeReply(&outcome.Decision{Kind: outcome.KindFoil, VaalOrbs: &orbs}, nil)

	var d outcome.Decision
	require.NoError(t, decodeReply(b, &d))
	assert.Equal(t, outcome.KindFoil, d.Kind)
	require.NotNil(t, d.VaalOrbs)
	assert.Equal(t, int64(4), *d.VaalOrbs)

	assert.NoError(t, decodeReply(encodeReply(nil, nil), nil))
}

func TestReply_ErrorsBecomeRemoteErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"insufficient orbs", service.ErrInsufficientOrbs, service.CodeInsufficientOrbs, false},
		{"card not found", service.ErrCardNotFound, service.CodeCardNotFound, false},
		{"invalid user", service.ErrInvalidUser, service.CodeInvalidUser, false},
		{"conflict", fmt.Errorf("%w: drift", service.ErrConflict), service.CodeConflict, false},
		{"internal", errors.New("db down"), service.CodeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeReply(encodeReply(nil, tt.err), nil)

			var remote *syncqueue.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tt.code, remote.Code)
			assert.Equal(t, tt.retryable, remote.Retryable)
			assert.Equal(t, tt.err.Error(), remote.Message)

			retryable, code := syncqueue.Classify(err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestReply_InvalidRequest(t *testing.T) {
	err := decodeReply(errorReply(CodeInvalidRequest, errors.New("bad json")), nil)
	var remote *syncqueue.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, CodeInvalidRequest, remote.Code)
	assert.False(t, remote.Retryable)
}

func TestReply_Garbage(t *testing.T) {
	assert.Error(t, decodeReply([]byte("not json"), nil))
}
