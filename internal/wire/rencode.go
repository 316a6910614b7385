package wire

import (
	"bytes"
	"unicode/utf8"

	rencode "github.com/gdm85/go-rencode"
)

// RencodeCodec implements Codec with the recursive tagged-length-value
// encoding the reference peers speak. Values are passed through to
// go-rencode, so containers should be built with rencode.NewList and
// rencode.Dictionary. On decode, byte strings holding valid UTF-8 come
// back as text at every nesting depth, matching the reference's decode
// behavior; byte strings that are not valid UTF-8 stay raw.
type RencodeCodec struct{}

func (RencodeCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := rencode.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (RencodeCodec) Decode(data []byte) (interface{}, error) {
	dec := rencode.NewDecoder(bytes.NewReader(data))
	v, err := dec.DecodeNext()
	if err != nil {
		return nil, err
	}
	return decodeUTF8(v), nil
}

// decodeUTF8 walks a decoded value and converts every byte string that
// holds valid UTF-8 into a Go string, descending into lists and
// dictionaries.
func decodeUTF8(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		return t
	case rencode.List:
		out := rencode.List{}
		for _, e := range t.Values() {
			out.Add(decodeUTF8(e))
		}
		return out
	case rencode.Dictionary:
		out := rencode.Dictionary{}
		keys := t.Keys()
		values := t.Values()
		for i := range keys {
			out.Add(decodeUTF8(keys[i]), decodeUTF8(values[i]))
		}
		return out
	}
	return v
}
