package event

import (
	"encoding/json"
	"fmt"

	"github.com/albatross-va/albatross/internal/domain"
)

// Data is a serialized event ready for the store or the bus.
type Data struct {
	Type    Type
	Payload []byte
}

// decoders is the single decode table mapping event types to constructors.
// Every consumer of serialized events goes through this table; there is no
// other place in the codebase that switches on event type strings.
var decoders = map[Type]func([]byte) (Event, error){
	TypeTenantCreated:   decode[TenantCreated],
	TypeUserRegistered:  decode[UserRegistered],
	TypePasswordChanged: decode[PasswordChanged],
	TypeApiKeyGenerated: decode[ApiKeyGenerated],
	TypeApiKeyRevoked:   decode[ApiKeyRevoked],
	TypeUserLoggedIn:    decode[UserLoggedIn],
	TypePirepSubmitted:  decode[PirepSubmitted],
}

func decode[E Event](payload []byte) (Event, error) {
	var ev E
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDeserialization, ev.EventType(), err)
	}
	return ev, nil
}

// Known reports whether t is a recognized event type.
func Known(t Type) bool {
	_, ok := decoders[t]
	return ok
}

// Encode marshals ev into a Data record.
func Encode(ev Event) (Data, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Data{}, fmt.Errorf("%w: %s: %v", domain.ErrSerialization, ev.EventType(), err)
	}
	return Data{Type: ev.EventType(), Payload: payload}, nil
}

// EncodeAll marshals a batch of events in order.
func EncodeAll(evs []Event) ([]Data, error) {
	out := make([]Data, 0, len(evs))
	for _, ev := range evs {
		d, err := Encode(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Decode unmarshals payload into the typed event registered for t.
// Unknown types return ErrDeserialization; callers that want a
// forward-compatible skip check Known first.
func Decode(t Type, payload []byte) (Event, error) {
	dec, ok := decoders[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrDeserialization, t)
	}
	return dec(payload)
}
