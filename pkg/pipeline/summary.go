package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Summary is the ordered operation name -> description record of a run.
// Setting a name again keeps its first position and replaces the description.
type Summary struct {
	keys []string
	vals map[string]string
}

func (s *Summary) Set(name, description string) {
	if s.vals == nil {
		s.vals = make(map[string]string)
	}
	if _, ok := s.vals[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.vals[name] = description
}

func (s Summary) Get(name string) (string, bool) {
	v, ok := s.vals[name]
	return v, ok
}

func (s Summary) Len() int { return len(s.keys) }

// Names returns the operation names in first-seen order.
func (s Summary) Names() []string { return append([]string(nil), s.keys...) }

// SummaryOf records every operation of ops, which is what a run with a table
// would produce.
func SummaryOf(ops []Operation) Summary {
	var s Summary
	for _, op := range ops {
		s.Set(op.Name, op.Description)
	}
	return s
}

func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(s.vals[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object back keeping the key order of the document.
func (s *Summary) UnmarshalJSON(data []byte) error {
	*s = Summary{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("summary: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var val *string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("summary: value of %q: %w", key, err)
		}
		desc := ""
		if val != nil {
			desc = *val
		}
		s.Set(key, desc)
	}
	_, err = dec.Token()
	return err
}
