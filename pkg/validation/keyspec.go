package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// KeySpec is an ordered field to direction mapping. JSON objects decode
// into Go maps with no ordering, so the decoder walks tokens to keep
// the declared field order, which the derived index name and key
// comparison both depend on.
type KeySpec []domain.IndexKey

// UnmarshalJSON decodes {"email": 1, "age": -1} preserving field order
func (k *KeySpec) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*k = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("index spec must be an object, got %v", tok)
	}

	var keys []domain.IndexKey
	for dec.More() {
		fieldTok, err := dec.Token()
		if err != nil {
			return err
		}
		field, ok := fieldTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in index spec", fieldTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return fmt.Errorf("direction for field %q must be a number, got %v", field, valTok)
		}
		dir, err := num.Int64()
		if err != nil {
			return fmt.Errorf("direction for field %q must be an integer: %w", field, err)
		}

		keys = append(keys, domain.IndexKey{Field: field, Direction: int(dir)})
	}

	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}

	*k = keys
	return nil
}

// MarshalJSON is the inverse: an object with fields in declared order
func (k KeySpec) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range k {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key.Field)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		fmt.Fprintf(&buf, ":%d", key.Direction)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
