package mongo

import (
	"bytes"
	"encoding/json"

	"gopkg.in/mgo.v2/bson"
)

// marshalDoc writes a document as a JSON object, keeping the order its
// fields had on the wire.
func marshalDoc(doc bson.D) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, elem := range doc {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(elem.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalValue(elem.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case bson.D:
		return marshalDoc(v)
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			value, err := marshalValue(item)
			if err != nil {
				return nil, err
			}
			buf.Write(value)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v)
	}
}
