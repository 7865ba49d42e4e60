package photos

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// Photo is a record from the photo API. Only ID is interpreted; every other
// field (URLs, caption, dimensions, ...) is carried verbatim.
type Photo struct {
	ID     int64
	fields map[string]json.RawMessage
}

// NewPhoto builds a Photo from arbitrary fields. It is mostly useful in tests.
func NewPhoto(id int64, fields map[string]any) (Photo, error) {
	p := Photo{ID: id, fields: make(map[string]json.RawMessage, len(fields)+1)}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return Photo{}, fmt.Errorf("photo: field %s: %w", k, err)
		}
		p.fields[k] = b
	}
	p.fields["id"] = json.RawMessage(fmt.Sprintf("%d", id))
	return p, nil
}

func (p *Photo) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	raw, ok := m["id"]
	if !ok {
		return errors.New("photo: missing id")
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return fmt.Errorf("photo: id: %w", err)
	}
	p.ID = id
	p.fields = m
	return nil
}

func (p Photo) MarshalJSON() ([]byte, error) {
	if p.fields == nil {
		return json.Marshal(map[string]int64{"id": p.ID})
	}
	return json.Marshal(p.fields)
}

// Field returns the raw JSON of a pass-through field.
func (p Photo) Field(name string) (json.RawMessage, bool) {
	v, ok := p.fields[name]
	return v, ok
}

// StringField decodes a string field, returning "" when absent or not a string.
func (p Photo) StringField(name string) string {
	var s string
	if raw, ok := p.fields[name]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Patch overlays the fields of updated onto p. The field map is copied first
// so other holders of the previous value are not affected.
func (p *Photo) Patch(updated Photo) {
	next := make(map[string]json.RawMessage, len(p.fields)+len(updated.fields))
	maps.Copy(next, p.fields)
	maps.Copy(next, updated.fields)
	next["id"] = json.RawMessage(fmt.Sprintf("%d", p.ID))
	p.fields = next
}

// Pagination is the paging block of a list response.
type Pagination struct {
	HasMore bool `json:"has_more"`
}

// Page is one response of the photo list endpoint.
type Page struct {
	Items      []Photo    `json:"items"`
	Total      int        `json:"total"`
	Pagination Pagination `json:"pagination"`
}

// IDBounds returns the smallest and largest photo ID of the page.
func (p *Page) IDBounds() (min, max int64, ok bool) {
	for i, it := range p.Items {
		if i == 0 || it.ID < min {
			min = it.ID
		}
		if i == 0 || it.ID > max {
			max = it.ID
		}
	}
	return min, max, len(p.Items) > 0
}
