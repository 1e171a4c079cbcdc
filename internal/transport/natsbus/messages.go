// Package natsbus carries altar requests between clients and the altar
// server over NATS request/reply.
package natsbus

import (
	"encoding/json"
	"fmt"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/service"
	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/syncqueue"
)

// Subjects served by the altar server.
const (
	SubjectRoll       = "altar.roll"
	SubjectCommit     = "altar.commit"
	SubjectCollection = "altar.collection"
)

// CodeInvalidRequest is replied when a request body cannot be decoded.
const CodeInvalidRequest = "INVALID_REQUEST"

// CollectionRequest asks for a user's collection.
type CollectionRequest struct {
	Username string `json:"username"`
}

// Reply is the envelope of every response.
type Reply struct {
	OK      bool            `json:"ok"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func encodeReply(data any, err error) []byte {
	var r Reply
	if err != nil {
		r.Code = service.ErrorCode(err)
		r.Message = err.Error()
	} else {
		r.OK = true
		if data != nil {
			b, mErr := json.Marshal(data)
			if mErr != nil {
				r = Reply{Code: service.CodeInternal, Message: mErr.Error()}
			} else {
				r.Data = b
			}
		}
	}
	b, _ := json.Marshal(r)
	return b
}

func errorReply(code string, err error) []byte {
	b, _ := json.Marshal(Reply{Code: code, Message: err.Error()})
	return b
}

// decodeReply unpacks a response into out. A refused request becomes a
// *syncqueue.RemoteError; only internal server failures are retryable.
func decodeReply(b []byte, out any) error {
	var r Reply
	if err := json.Unmarshal(b, &r); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	if !r.OK {
		code := r.Code
		if code == "" {
			code = service.CodeInternal
		}
		return &syncqueue.RemoteError{
			Code:      code,
			Message:   r.Message,
			Retryable: code == service.CodeInternal,
		}
	}
	if out == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("failed to decode reply data: %w", err)
	}
	return nil
}

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return b, nil
}
