package codec

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/drblury/fixflow/internal/runtime/fields"
	"github.com/drblury/fixflow/internal/runtime/message"
)

var jsonAPI = sonic.ConfigStd

type jsonEnvelope struct {
	Fields []jsonField `json:"fields"`
}

type jsonField struct {
	Tag   uint32 `json:"tag"`
	Name  string `json:"name,omitempty"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// JSON encodes messages as an ordered list of typed fields. Names are looked up
// in the dictionary for readability and ignored when decoding.
type JSON struct {
	dict *fields.Dictionary
}

// NewJSON returns the JSON codec; dict may be nil.
func NewJSON(dict *fields.Dictionary) JSON {
	return JSON{dict: dict}
}

func (JSON) Name() string        { return NameJSON }
func (JSON) ContentType() string { return "application/json" }

// Marshal encodes every occurrence of m in insertion order.
func (c JSON) Marshal(m *message.Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("codec json: nil message")
	}
	env := jsonEnvelope{Fields: make([]jsonField, 0, m.Len())}
	for tag, v := range m.All() {
		if !v.IsValid() {
			return nil, fmt.Errorf("codec json: field %d (tag %d): %w", len(env.Fields), tag, ErrInvalidValue)
		}
		f := jsonField{
			Tag:   uint32(tag),
			Kind:  v.Kind().String(),
			Value: formatText(v),
		}
		if desc, ok := c.dict.Lookup(tag); ok {
			f.Name = desc.Name()
		}
		env.Fields = append(env.Fields, f)
	}
	return jsonAPI.Marshal(env)
}

// Unmarshal rebuilds a frozen message from an envelope.
func (JSON) Unmarshal(data []byte) (*message.Message, error) {
	var env jsonEnvelope
	if err := jsonAPI.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("codec json: %w", err)
	}
	b := message.NewBuilder()
	for i, f := range env.Fields {
		kind, ok := fields.KindOf(f.Kind)
		if !ok {
			return nil, fmt.Errorf("codec json: field %d (tag %d): unknown kind %q", i, f.Tag, f.Kind)
		}
		v, err := parseText(kind, f.Value)
		if err != nil {
			return nil, fmt.Errorf("codec json: field %d (tag %d): %w", i, f.Tag, err)
		}
		b.AddTagValue(fields.Tag(f.Tag), v)
	}
	return b.Freeze(), nil
}
