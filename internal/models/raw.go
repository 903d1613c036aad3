package models

import "encoding/json"

// RawPaginatedResponse is a CMS search response as it came off the wire.
// Keys that were absent are absent from the map; a JSON null is kept as the
// literal "null".
type RawPaginatedResponse map[string]json.RawMessage

// RawDocument is a single CMS document as it came off the wire.
type RawDocument map[string]json.RawMessage
