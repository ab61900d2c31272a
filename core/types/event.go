package types

// Event is a typed record of a state transition, with string attributes so
// downstream consumers can render or index it without knowing the payload
// shape.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
