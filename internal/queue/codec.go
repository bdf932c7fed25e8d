package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Content types written to the content-type message header.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"

	contentTypeHeader = "content-type"
)

// Codec serializes envelopes to Kafka message values.
type Codec interface {
	ContentType() string
	Encode(env *Envelope) ([]byte, error)
	Decode(data []byte) (*Envelope, error)
}

// NewCodec returns the codec for an encoding name ("json" or "protobuf").
func NewCodec(encoding string) (Codec, error) {
	switch encoding {
	case "", "json":
		return JSONCodec{}, nil
	case "protobuf", "proto":
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown job encoding %q (want json or protobuf)", encoding)
	}
}

// codecForMessage picks the codec from the message's content-type header.
// Messages without the header are JSON.
func codecForMessage(msg *kafka.Message) Codec {
	for _, h := range msg.Headers {
		if h.Key == contentTypeHeader && string(h.Value) == ContentTypeProtobuf {
			return ProtoCodec{}
		}
	}
	return JSONCodec{}
}

// JSONCodec encodes envelopes as JSON documents.
type JSONCodec struct{}

func (JSONCodec) ContentType() string { return ContentTypeJSON }

func (JSONCodec) Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &env, nil
}

// ProtoCodec encodes envelopes as a google.protobuf.Struct. The job payload is
// carried as its JSON text so metadata key order and number precision survive.
type ProtoCodec struct{}

func (ProtoCodec) ContentType() string { return ContentTypeProtobuf }

func (ProtoCodec) Encode(env *Envelope) ([]byte, error) {
	fields := map[string]any{
		"id":          env.ID,
		"kind":        env.Kind,
		"key":         env.Key,
		"attempt":     env.Attempt,
		"maxAttempts": env.MaxAttempts,
		"data":        string(env.Data),
	}
	if !env.NotBefore.IsZero() {
		fields["notBefore"] = env.NotBefore.UTC().Format(time.RFC3339Nano)
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build envelope struct: %w", err)
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope protobuf: %w", err)
	}
	return data, nil
}

func (ProtoCodec) Decode(data []byte) (*Envelope, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope protobuf: %w", err)
	}

	f := s.GetFields()
	env := &Envelope{
		ID:          f["id"].GetStringValue(),
		Kind:        f["kind"].GetStringValue(),
		Key:         f["key"].GetStringValue(),
		Attempt:     int(f["attempt"].GetNumberValue()),
		MaxAttempts: int(f["maxAttempts"].GetNumberValue()),
		Data:        json.RawMessage(f["data"].GetStringValue()),
	}
	if nb := f["notBefore"].GetStringValue(); nb != "" {
		t, err := time.Parse(time.RFC3339Nano, nb)
		if err != nil {
			return nil, fmt.Errorf("invalid notBefore %q: %w", nb, err)
		}
		env.NotBefore = t
	}
	if env.ID == "" || env.Kind == "" {
		return nil, fmt.Errorf("envelope is missing id or kind")
	}
	return env, nil
}
