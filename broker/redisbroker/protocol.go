package redisbroker

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key and structure conventions shared with Celery/kombu.
const (
	taskMetaPrefix = "celery-task-meta-"
	bindingPrefix  = "_kombu.binding."
	unackedKey     = "unacked"
	revokedKey     = "revoked"
	defaultQueue   = "celery"

	// kombuSeparator joins routing key, priority, and queue name inside a
	// binding set member.
	kombuSeparator = "\x06\x16"
)

// envelope is the decoded form of one queued message: the task identity and
// payload extracted from the outer framing and the encoded body.
type envelope struct {
	ID      string
	Name    string
	Args    string // JSON array text
	Kwargs  string // JSON object text
	Origin  string // producer identity, e.g. "gen4471@worker-1"
	Queue   string // routing key / target queue
	Retries int
}

type wireDeliveryInfo struct {
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
}

type wireProperties struct {
	CorrelationID string           `json:"correlation_id,omitempty"`
	BodyEncoding  string           `json:"body_encoding,omitempty"`
	DeliveryMode  int              `json:"delivery_mode,omitempty"`
	DeliveryTag   string           `json:"delivery_tag,omitempty"`
	DeliveryInfo  wireDeliveryInfo `json:"delivery_info"`
	Priority      int              `json:"priority"`
}

type wireHeaders struct {
	Lang    string `json:"lang,omitempty"`
	Task    string `json:"task,omitempty"`
	ID      string `json:"id,omitempty"`
	RootID  string `json:"root_id,omitempty"`
	Origin  string `json:"origin,omitempty"`
	Retries int    `json:"retries,omitempty"`
}

// wireMessage is the outer framing of a queued message.
type wireMessage struct {
	Body            string         `json:"body"`
	ContentType     string         `json:"content-type,omitempty"`
	ContentEncoding string         `json:"content-encoding,omitempty"`
	Headers         wireHeaders    `json:"headers"`
	Properties      wireProperties `json:"properties"`
}

// wireBodyV1 is the protocol v1 body, which carries the task identity
// inline instead of in the headers.
type wireBodyV1 struct {
	Task    string          `json:"task"`
	ID      string          `json:"id"`
	Args    json.RawMessage `json:"args"`
	Kwargs  json.RawMessage `json:"kwargs"`
	Retries int             `json:"retries"`
}

// decodeEnvelope parses one raw list element into an envelope. It accepts
// message protocol v2 (identity in headers, body = [args, kwargs, embed])
// and protocol v1 (identity inside the body object), and tolerates the body
// being either base64-wrapped JSON or bare JSON.
func decodeEnvelope(raw string) (*envelope, error) {
	var msg wireMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("malformed envelope framing: %w", err)
	}

	env := &envelope{
		ID:      msg.Headers.ID,
		Name:    msg.Headers.Task,
		Origin:  msg.Headers.Origin,
		Queue:   msg.Properties.DeliveryInfo.RoutingKey,
		Retries: msg.Headers.Retries,
		Args:    "[]",
		Kwargs:  "{}",
	}

	body, err := decodeBody(msg.Body, msg.Properties.BodyEncoding)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		// Header-only message; acceptable as long as identity is present.
	case trimmed[0] == '[':
		// Protocol v2: [args, kwargs, embed].
		var parts []json.RawMessage
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return nil, fmt.Errorf("malformed v2 body: %w", err)
		}
		if len(parts) > 0 {
			env.Args = string(parts[0])
		}
		if len(parts) > 1 {
			env.Kwargs = string(parts[1])
		}
	case trimmed[0] == '{':
		// Protocol v1: identity and payload live inside the body.
		var v1 wireBodyV1
		if err := json.Unmarshal(trimmed, &v1); err != nil {
			return nil, fmt.Errorf("malformed v1 body: %w", err)
		}
		if env.ID == "" {
			env.ID = v1.ID
		}
		if env.Name == "" {
			env.Name = v1.Task
		}
		if env.Retries == 0 {
			env.Retries = v1.Retries
		}
		if len(v1.Args) > 0 {
			env.Args = string(v1.Args)
		}
		if len(v1.Kwargs) > 0 {
			env.Kwargs = string(v1.Kwargs)
		}
	default:
		return nil, fmt.Errorf("unrecognized body payload")
	}

	if env.ID == "" {
		return nil, fmt.Errorf("envelope missing task id")
	}
	return env, nil
}

// decodeBody unwraps the body layer. When the encoding marker is absent the
// body is probed as base64-over-JSON first and bare JSON second, since both
// appear in the wild depending on the producer's protocol version.
func decodeBody(body, encoding string) ([]byte, error) {
	if body == "" {
		return nil, nil
	}
	switch encoding {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("malformed base64 body: %w", err)
		}
		return decoded, nil
	case "":
		if decoded, err := base64.StdEncoding.DecodeString(body); err == nil && json.Valid(decoded) {
			return decoded, nil
		}
		if json.Valid([]byte(body)) {
			return []byte(body), nil
		}
		return nil, fmt.Errorf("body is neither base64-wrapped nor bare JSON")
	default:
		return nil, fmt.Errorf("unsupported body encoding %q", encoding)
	}
}

// encodeEnvelope serializes an envelope as a protocol v2 message with a
// base64-wrapped JSON body, the form modern producers emit.
func encodeEnvelope(env *envelope) (string, error) {
	args := env.Args
	if args == "" {
		args = "[]"
	}
	kwargs := env.Kwargs
	if kwargs == "" {
		kwargs = "{}"
	}

	embed := map[string]any{"callbacks": nil, "errbacks": nil, "chain": nil, "chord": nil}
	body, err := json.Marshal([]any{json.RawMessage(args), json.RawMessage(kwargs), embed})
	if err != nil {
		return "", fmt.Errorf("failed to encode body: %w", err)
	}

	queue := env.Queue
	if queue == "" {
		queue = defaultQueue
	}

	msg := wireMessage{
		Body:            base64.StdEncoding.EncodeToString(body),
		ContentType:     "application/json",
		ContentEncoding: "utf-8",
		Headers: wireHeaders{
			Lang:    "py",
			Task:    env.Name,
			ID:      env.ID,
			RootID:  env.ID,
			Origin:  env.Origin,
			Retries: env.Retries,
		},
		Properties: wireProperties{
			CorrelationID: env.ID,
			BodyEncoding:  "base64",
			DeliveryMode:  2,
			DeliveryTag:   uuid.NewString(),
			DeliveryInfo:  wireDeliveryInfo{Exchange: "", RoutingKey: queue},
		},
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return string(raw), nil
}

// decodeUnackedEntry parses one value of the unacked hash, which stores
// [envelope, exchange, routing_key] per reserved delivery.
func decodeUnackedEntry(raw string) (*envelope, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parts); err != nil {
		return nil, fmt.Errorf("malformed unacked entry: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty unacked entry")
	}
	env, err := decodeEnvelope(string(parts[0]))
	if err != nil {
		return nil, err
	}
	if len(parts) >= 3 {
		var routingKey string
		if err := json.Unmarshal(parts[2], &routingKey); err == nil && routingKey != "" {
			env.Queue = routingKey
		}
	}
	return env, nil
}

// taskMeta is one result-store record. The payload fields (name, args,
// kwargs, worker, queue) are only present when the deployment stores
// extended results.
type taskMeta struct {
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Traceback string          `json:"traceback"`
	TaskID    string          `json:"task_id"`
	DateDone  string          `json:"date_done"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args"`
	Kwargs    json.RawMessage `json:"kwargs"`
	Worker    string          `json:"worker"`
	Queue     string          `json:"queue"`
	Retries   int             `json:"retries"`
}

func decodeTaskMeta(raw string) (*taskMeta, error) {
	var meta taskMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("malformed result record: %w", err)
	}
	return &meta, nil
}

// dateDoneLayouts covers the timestamp shapes result backends emit: full
// RFC 3339 and ISO 8601 without a zone designator (implicitly UTC).
var dateDoneLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// timestamp parses the record's completion time, returning fallback when
// the field is absent or unparseable.
func (m *taskMeta) timestamp(fallback time.Time) time.Time {
	if m.DateDone == "" {
		return fallback
	}
	for _, layout := range dateDoneLayouts {
		if ts, err := time.Parse(layout, m.DateDone); err == nil {
			return ts.UTC()
		}
	}
	return fallback
}

// hostnameFromOrigin extracts the host part of a worker origin string such
// as "gen4471@worker-1". A bare hostname passes through unchanged.
func hostnameFromOrigin(origin string) string {
	if at := strings.IndexByte(origin, '@'); at >= 0 {
		return origin[at+1:]
	}
	return origin
}

// bindingQueueName extracts the queue name from one binding set member.
// Members have the form "routing_key\x06\x16<priority>\x06\x16queue"; a
// member without separators names the queue directly.
func bindingQueueName(member string) string {
	parts := strings.Split(member, kombuSeparator)
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return parts[0]
}
