package model

// Queue is a broker queue discovered from routing bindings or envelope
// routing keys. Queues are rediscovered on every cycle; a queue with zero
// length and no binding evidence is dropped rather than retained as empty.
type Queue struct {
	// Name is the queue (Redis list) name.
	Name string `json:"name"`

	// Length is the live message count at fetch time.
	Length int64 `json:"length"`

	// Consumers is a best-effort consumer count. The list backend has no
	// consumer-tracking primitive, so this may be zero even when workers
	// are consuming the queue.
	Consumers int `json:"consumers"`
}

// IsEmpty reports whether the queue held no messages at fetch time.
func (q *Queue) IsEmpty() bool {
	return q.Length == 0
}
