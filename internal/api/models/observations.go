package models

// OptionGroups lists the AERONET query parameters the server accepts.
type OptionGroups struct {
	Required  []string `json:"required"`
	DataTypes []string `json:"dataTypes"`
	Optional  []string `json:"optional"`

	// Defaults are merged under every request.
	Defaults map[string]string `json:"defaults"`
}

// Observations is the JSON form of a parsed AERONET table. Columns keeps the
// service's column order; each row maps column name to a number, a string,
// an RFC 3339 time for derived columns, or null for no value.
type Observations struct {
	Columns []string         `json:"columns"`
	Count   int              `json:"count"`
	Rows    []map[string]any `json:"rows"`
}
