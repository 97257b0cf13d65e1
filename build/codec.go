package build

import (
	_ "embed"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeCodec = "build_codec"
)

var (
	//go:embed schemas/task.schema.json
	taskSchema string

	//go:embed schemas/result.schema.json
	resultSchema string
)

// Codec encodes the messages exchanged with the workers as zstd compressed
// JSON. Decoded messages are validated against their schema. A Codec is safe
// for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	taskSchema   *jsonschema.Schema
	resultSchema *jsonschema.Schema
}

func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.New("creating zstd encoder failed").
			WithType(ErrTypeCodec).
			Wrap(err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, errors.New("creating zstd decoder failed").
			WithType(ErrTypeCodec).
			Wrap(err)
	}

	c := &Codec{
		encoder: encoder,
		decoder: decoder,
	}

	if c.taskSchema, err = jsonschema.CompileString("task.schema.json", taskSchema); err != nil {
		c.Close()
		return nil, errors.New("compiling task schema failed").
			WithType(ErrTypeCodec).
			Wrap(err)
	}

	if c.resultSchema, err = jsonschema.CompileString("result.schema.json", resultSchema); err != nil {
		c.Close()
		return nil, errors.New("compiling result schema failed").
			WithType(ErrTypeCodec).
			Wrap(err)
	}

	return c, nil
}

func (c *Codec) EncodeTask(t Task) ([]byte, error) {
	return c.encode("task", t)
}

func (c *Codec) DecodeTask(b []byte) (Task, error) {
	var t Task
	err := c.decode("task", c.taskSchema, b, &t)
	return t, err
}

func (c *Codec) EncodeResult(r Result) ([]byte, error) {
	return c.encode("result", r)
}

func (c *Codec) DecodeResult(b []byte) (Result, error) {
	var r Result
	err := c.decode("result", c.resultSchema, b, &r)
	return r, err
}

func (c *Codec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

func (c *Codec) encode(kind string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.New("encoding message failed").
			WithType(ErrTypeCodec).
			WithTag("kind", kind).
			Wrap(err)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c *Codec) decode(kind string, schema *jsonschema.Schema, b []byte, v any) error {
	raw, err := c.decoder.DecodeAll(b, nil)
	if err != nil {
		return errors.New("decompressing message failed").
			WithType(ErrTypeCodec).
			WithTag("kind", kind).
			Wrap(err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.New("parsing message failed").
			WithType(ErrTypeCodec).
			WithTag("kind", kind).
			Wrap(err)
	}

	if err := schema.Validate(doc); err != nil {
		return errors.New("message does not match its schema").
			WithType(ErrTypeCodec).
			WithTag("kind", kind).
			Wrap(err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("decoding message failed").
			WithType(ErrTypeCodec).
			WithTag("kind", kind).
			Wrap(err)
	}
	return nil
}
