package layering

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON writes mappings as JSON objects in declaration order.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n Node) writeJSON(buf *bytes.Buffer) error {
	switch n.kind {
	case KindNull:
		buf.WriteString("null")
	case KindScalar:
		raw, err := json.Marshal(n.scalar)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindSequence:
		buf.WriteByte('[')
		for i := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := n.items[i].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		buf.WriteByte('{')
		for i, key := range n.fields.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			rawKey, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(rawKey)
			buf.WriteByte(':')
			if err := n.fields.values[key].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes a JSON document keeping object key order.
func (n *Node) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	node, err := DecodeJSON(decoder)
	if err != nil {
		return err
	}
	*n = node
	return nil
}

// DecodeJSON reads one JSON value from decoder. The decoder should have
// UseNumber enabled so integers survive as int.
func DecodeJSON(decoder *json.Decoder) (Node, error) {
	token, err := decoder.Token()
	if err != nil {
		return Null(), err
	}
	return decodeToken(decoder, token)
}

func decodeToken(decoder *json.Decoder, token json.Token) (Node, error) {
	switch value := token.(type) {
	case json.Delim:
		switch value {
		case '{':
			node := Node{kind: KindMapping, fields: newFields(0)}
			for decoder.More() {
				keyToken, err := decoder.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyToken.(string)
				if !ok {
					return Null(), fmt.Errorf("layering: expected object key, got %v", keyToken)
				}
				child, err := DecodeJSON(decoder)
				if err != nil {
					return Null(), fmt.Errorf("%s: %w", key, err)
				}
				node.fields.set(key, child)
			}
			if _, err := decoder.Token(); err != nil {
				return Null(), err
			}
			return node, nil
		case '[':
			node := Node{kind: KindSequence, items: []Node{}}
			for decoder.More() {
				child, err := DecodeJSON(decoder)
				if err != nil {
					return Null(), err
				}
				node.items = append(node.items, child)
			}
			if _, err := decoder.Token(); err != nil {
				return Null(), err
			}
			return node, nil
		default:
			return Null(), fmt.Errorf("layering: unexpected delimiter %q", value)
		}
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return Scalar(i), nil
		}
		f, err := value.Float64()
		if err != nil {
			return Null(), err
		}
		return Scalar(f), nil
	case nil:
		return Null(), nil
	default:
		return Scalar(value), nil
	}
}
