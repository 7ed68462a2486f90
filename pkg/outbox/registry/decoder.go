package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

// ErrNoDecoder is returned by Decode for an event type and version pair
// that nothing registered. Consumers ack such messages.
var ErrNoDecoder = errors.New("no decoder registered")

type decoderFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps an event type and payload version to a decoder.
// It is filled before consumers start and only read afterwards.
type DecoderRegistry struct {
	decoders map[decoderKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]decoderFunc)}
}

// Register adds decoder for eventType at version. Registering the same pair
// twice is an error.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) error {
	if decoder == nil || version < 1 {
		return fmt.Errorf("decoder for %s@v%d: nil decoder or bad version", eventType, version)
	}
	key := decoderKey{eventType: eventType, version: version}
	if _, dup := r.decoders[key]; dup {
		return fmt.Errorf("decoder for %s@v%d already registered", eventType, version)
	}
	r.decoders[key] = decoder
	return nil
}

// Decode parses payload for eventType. Version 0 is read as the current
// envelope version, matching envelopes written before versions were stamped.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	if version == 0 {
		version = outbox.EnvelopeVersion
	}
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	decoded, err := decoder(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
	}
	return decoded, nil
}

func jsonDecoder[T any]() decoderFunc {
	return func(payload json.RawMessage) (any, error) {
		var decoded T
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	}
}

// LedgerDecoders registers a decoder for every catalogued ledger event at
// the current envelope version. Decoded values are payload structs, not
// pointers.
func LedgerDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for _, ev := range ledgerCatalog {
		if err := reg.Register(ev.eventType, outbox.EnvelopeVersion, ev.decode); err != nil {
			panic(err)
		}
	}
	return reg
}
