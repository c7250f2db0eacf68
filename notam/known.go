package notam

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// KnownSnapshot is a client-supplied mapping from record id to the
// last-known lastUpdated marker. It preserves the order in which
// entries were supplied so that delta output is deterministic.
// Size is client-controlled; the snapshot tolerates empty or
// arbitrarily large input.
type KnownSnapshot struct {
	order []string
	last  map[string]string
}

// Set records the lastUpdated marker for an id. A duplicate id keeps
// its original position but takes the new marker.
func (s *KnownSnapshot) Set(id, lastUpdated string) {
	if s.last == nil {
		s.last = make(map[string]string)
	}
	if _, ok := s.last[id]; !ok {
		s.order = append(s.order, id)
	}
	s.last[id] = lastUpdated
}

// Get returns the last-known marker for an id.
func (s *KnownSnapshot) Get(id string) (string, bool) {
	if s == nil {
		return "", false
	}
	lu, ok := s.last[id]
	return lu, ok
}

// Len returns the number of known ids.
func (s *KnownSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Each calls fn for every entry in insertion order.
func (s *KnownSnapshot) Each(fn func(id, lastUpdated string)) {
	if s == nil {
		return
	}
	for _, id := range s.order {
		fn(id, s.last[id])
	}
}

// UnmarshalJSON accepts either an object mapping id to lastUpdated or
// a list of {id, lastUpdated} objects. Entries without a string id or
// a string marker are skipped. Object keys are kept in document order,
// which the stock map decoding would lose.
func (s *KnownSnapshot) UnmarshalJSON(data []byte) error {
	*s = KnownSnapshot{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch delim, ok := tok.(json.Delim); {
	case ok && delim == '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			id, _ := keyTok.(string)
			var value any
			if err := dec.Decode(&value); err != nil {
				return err
			}
			if lu, ok := value.(string); ok && id != "" {
				s.Set(id, lu)
			}
		}
		return nil
	case ok && delim == '[':
		// rewind and decode the whole list in one go
		var entries []struct {
			ID          string `json:"id"`
			LastUpdated string `json:"lastUpdated"`
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}
		for _, e := range entries {
			if e.ID != "" {
				s.Set(e.ID, e.LastUpdated)
			}
		}
		return nil
	}
	return fmt.Errorf("known must be an object or a list")
}
