package session

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrInvalidPayload = errors.New("session: invalid json payload")

// EncodeJSON marshals v into a frame payload.
func EncodeJSON(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return payload, nil
}

// DecodeJSON unmarshals one frame payload into v.
func DecodeJSON(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty frame", ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (p *Pump) SendJSON(ctx context.Context, v any) error {
	payload, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	return p.Send(ctx, payload)
}

func (p *Pump) RecvJSON(ctx context.Context, v any) error {
	payload, err := p.Recv(ctx)
	if err != nil {
		return err
	}
	return DecodeJSON(payload, v)
}
