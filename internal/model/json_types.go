package model

import (
	"database/sql/driver"
	"encoding/json"
)

// StringList is a JSON-column []string, the same driver.Valuer/sql.Scanner
// pattern as the teacher's model.StringArray, generalized to a reusable name
// since every entity here needs at least one string-list column.
type StringList []string

func (a StringList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *StringList) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	bytes, ok := asBytes(value)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// AbilityList is a JSON-column []Ability.
type AbilityList []Ability

func (a AbilityList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *AbilityList) Scan(value interface{}) error {
	if value == nil {
		*a = []Ability{}
		return nil
	}
	bytes, ok := asBytes(value)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// TagList is a JSON-column []Tag.
type TagList []Tag

func (a TagList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *TagList) Scan(value interface{}) error {
	if value == nil {
		*a = []Tag{}
		return nil
	}
	bytes, ok := asBytes(value)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// JSONMap is a JSON-column map[string]any, used for opaque payloads and
// structured evidence blobs.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = map[string]any{}
		return nil
	}
	bytes, ok := asBytes(value)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

func asBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}
