package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Metadata records are small tagged structs, for which JSON is stable and
// portable across rebuilds. Persisted artifacts always record the codec
// name so it can be validated on load.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for newly built artifacts.
var Default Codec = JSON{}
