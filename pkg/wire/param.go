package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParamKind discriminates the Param variant.
type ParamKind uint8

const (
	// ParamScalar is a bare named type such as "string" or "int".
	ParamScalar ParamKind = 0

	// ParamObject is an object with named, typed fields.
	ParamObject ParamKind = 1
)

// String returns the kind name.
func (k ParamKind) String() string {
	switch k {
	case ParamScalar:
		return "SCALAR"
	case ParamObject:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}

// arrayMarker is the trailing marker for array-valued parameters.
const arrayMarker = "*"

// ParamField is one field of an object parameter.
type ParamField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Param describes one input or output parameter of a remote method.
type Param struct {
	Kind ParamKind `json:"kind"`

	// Type is the scalar type name. Empty for objects.
	Type string `json:"type,omitempty"`

	// Fields lists object fields in the order the device declared them.
	Fields []ParamField `json:"fields,omitempty"`

	// Array is set when the descriptor carried the trailing "*".
	Array bool `json:"array,omitempty"`
}

// ParseParam decodes a parameter descriptor string.
func ParseParam(desc string) (Param, error) {
	s := strings.TrimSpace(desc)
	if s == "" {
		return Param{}, fmt.Errorf("empty parameter descriptor")
	}

	var p Param
	if strings.HasSuffix(s, arrayMarker) {
		p.Array = true
		s = strings.TrimSpace(strings.TrimSuffix(s, arrayMarker))
	}

	if !strings.HasPrefix(s, "{") {
		p.Kind = ParamScalar
		p.Type = s
		return p, nil
	}

	fields, err := parseObjectFields(s)
	if err != nil {
		return Param{}, fmt.Errorf("parameter descriptor %q: %w", desc, err)
	}
	p.Kind = ParamObject
	p.Fields = fields
	return p, nil
}

// ParseParams decodes a list of descriptors. Entries that are not strings or
// fail to parse are skipped; descriptors are informational only.
func ParseParams(descs []any) []Param {
	if len(descs) == 0 {
		return nil
	}
	params := make([]Param, 0, len(descs))
	for _, d := range descs {
		s, ok := d.(string)
		if !ok {
			continue
		}
		p, err := ParseParam(s)
		if err != nil {
			continue
		}
		params = append(params, p)
	}
	return params
}

// parseObjectFields walks the object tokens so that declaration order is kept.
func parseObjectFields(s string) ([]ParamField, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}

	var fields []ParamField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}

		var typ string
		if err := json.Unmarshal(raw, &typ); err != nil {
			// Nested descriptors keep their compact JSON text as the type.
			var buf bytes.Buffer
			if cerr := json.Compact(&buf, raw); cerr != nil {
				return nil, cerr
			}
			typ = buf.String()
		}
		fields = append(fields, ParamField{Name: name, Type: typ})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after object")
	}
	return fields, nil
}

// String renders the descriptor back in device notation.
func (p Param) String() string {
	var sb strings.Builder
	switch p.Kind {
	case ParamObject:
		sb.WriteByte('{')
		for i, f := range p.Fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			name, _ := json.Marshal(f.Name)
			sb.Write(name)
			sb.WriteByte(':')
			if strings.HasPrefix(f.Type, "{") || strings.HasPrefix(f.Type, "[") {
				sb.WriteString(f.Type)
			} else {
				typ, _ := json.Marshal(f.Type)
				sb.Write(typ)
			}
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(p.Type)
	}
	if p.Array {
		sb.WriteString(arrayMarker)
	}
	return sb.String()
}
