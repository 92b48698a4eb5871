// Package jsonval models arbitrary JSON documents as a closed set of Go
// types. Collection records have no fixed schema, so the usual struct
// decoding does not apply; at the same time sidecar files must round-trip
// with the member order and number literals the API sent. The sum type
// keeps both: Object preserves member order, Number keeps the original
// literal text.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Value is one JSON value: Object, Array, String, Number, Bool or Null.
type Value interface {
	isValue()
}

// Member is a single key/value pair inside an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is a JSON object with member order preserved as decoded.
type Object []Member

// Array is a JSON array.
type Array []Value

// String is a JSON string.
type String string

// Number holds the original JSON number literal (e.g. "1.50", "1e3") so
// encoding never reformats what the remote sent.
type Number string

// Bool is a JSON boolean.
type Bool bool

// Null is the JSON null value.
type Null struct{}

func (Object) isValue() {}
func (Array) isValue()  {}
func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (Null) isValue()   {}

// Get returns the value of the first member with the given key.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Float returns the number as a float64.
func (n Number) Float() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Unmarshal decodes a JSON document into a Value.
func Unmarshal(data []byte) (Value, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a single JSON document from r. Trailing non-whitespace
// content after the document is an error.
func Decode(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing content after JSON document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected %q", t.String())
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	obj := Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj = append(obj, Member{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	arr := Array{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return nil, err
	}
	return arr, nil
}

// Marshal encodes v compactly.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, "", ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalIndent encodes v with newlines and the given indent per nesting
// level. Strings pass through with non-ASCII characters kept literal.
func MarshalIndent(v Value, indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value, prefix, indent string) error {
	pretty := indent != ""
	switch t := v.(type) {
	case Object:
		if len(t) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteByte('{')
		inner := prefix + indent
		for i, m := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if pretty {
				buf.WriteByte('\n')
				buf.WriteString(inner)
			}
			encodeString(buf, m.Key)
			buf.WriteByte(':')
			if pretty {
				buf.WriteByte(' ')
			}
			if err := encode(buf, m.Value, inner, indent); err != nil {
				return err
			}
		}
		if pretty {
			buf.WriteByte('\n')
			buf.WriteString(prefix)
		}
		buf.WriteByte('}')
		return nil
	case Array:
		if len(t) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteByte('[')
		inner := prefix + indent
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if pretty {
				buf.WriteByte('\n')
				buf.WriteString(inner)
			}
			if err := encode(buf, e, inner, indent); err != nil {
				return err
			}
		}
		if pretty {
			buf.WriteByte('\n')
			buf.WriteString(prefix)
		}
		buf.WriteByte(']')
		return nil
	case String:
		encodeString(buf, string(t))
		return nil
	case Number:
		if !json.Valid([]byte(t)) {
			return fmt.Errorf("invalid number literal %q", string(t))
		}
		buf.WriteString(string(t))
		return nil
	case Bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case Null:
		buf.WriteString("null")
		return nil
	case nil:
		return fmt.Errorf("cannot encode nil Value")
	default:
		return fmt.Errorf("unknown value type %T", v)
	}
}

const hexDigits = "0123456789abcdef"

// encodeString writes s as a JSON string. Unlike encoding/json it does not
// escape HTML characters, and non-ASCII runes are written verbatim so
// sidecars keep accented titles readable.
func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[byte(r)>>4])
				buf.WriteByte(hexDigits[byte(r)&0xf])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// Equal reports whether two values are structurally equal. Object member
// order is ignored and a duplicated key counts by its last occurrence,
// matching how ordinary JSON decoders see the document. Numbers compare by
// literal first, then numerically, so 1 and 1.0 are equal.
func Equal(a, b Value) bool {
	switch at := a.(type) {
	case Object:
		bt, ok := b.(Object)
		if !ok {
			return false
		}
		am, bm := effectiveMembers(at), effectiveMembers(bt)
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case Array:
		bt, ok := b.(Array)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case String:
		bt, ok := b.(String)
		return ok && at == bt
	case Number:
		bt, ok := b.(Number)
		if !ok {
			return false
		}
		if at == bt {
			return true
		}
		af, aerr := at.Float()
		bf, berr := bt.Float()
		return aerr == nil && berr == nil && af == bf
	case Bool:
		bt, ok := b.(Bool)
		return ok && at == bt
	case Null:
		_, ok := b.(Null)
		return ok
	default:
		return false
	}
}

// effectiveMembers flattens an object to its last-occurrence-wins view.
func effectiveMembers(o Object) map[string]Value {
	m := make(map[string]Value, len(o))
	for _, member := range o {
		m[member.Key] = member.Value
	}
	return m
}
