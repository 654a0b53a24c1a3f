package domain

// DataSourceType identifies a storage backend
type DataSourceType string

// String returns the backend name
func (t DataSourceType) String() string {
	return string(t)
}

const (
	// DataSourceTypeMemory in-process map storage
	DataSourceTypeMemory DataSourceType = "memory"
	// DataSourceTypeBadger embedded badger KV storage
	DataSourceTypeBadger DataSourceType = "badger"
	// DataSourceTypeMySQL MySQL server
	DataSourceTypeMySQL DataSourceType = "mysql"
	// DataSourceTypePostgreSQL PostgreSQL server
	DataSourceTypePostgreSQL DataSourceType = "postgresql"
	// DataSourceTypeSQLite embedded SQLite file or in-memory database
	DataSourceTypeSQLite DataSourceType = "sqlite"
)

// DataSourceConfig describes how to reach a backend
type DataSourceConfig struct {
	Type     DataSourceType         `json:"type" yaml:"type" validate:"omitempty,oneof=memory badger mysql postgresql sqlite"`
	Name     string                 `json:"name" yaml:"name"`
	Host     string                 `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int                    `json:"port,omitempty" yaml:"port,omitempty"`
	Username string                 `json:"username,omitempty" yaml:"username,omitempty"`
	Password string                 `json:"password,omitempty" yaml:"password,omitempty"`
	Database string                 `json:"database,omitempty" yaml:"database,omitempty"`
	Writable bool                   `json:"writable,omitempty" yaml:"writable,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// TableInfo table metadata
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo column metadata.
// Type is one of: int, float64, bool, string, json.
// json columns hold collection or complex values.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Primary  bool   `json:"primary"`
}

// Column type names shared by all backends
const (
	ColumnTypeInt    = "int"
	ColumnTypeFloat  = "float64"
	ColumnTypeBool   = "bool"
	ColumnTypeString = "string"
	ColumnTypeJSON   = "json"
)

// Row is one stored record
type Row map[string]interface{}

// RowTypeKey holds the qualified entity type name of a row.
// Rows without it are instances of the entity set's declared type.
const RowTypeKey = "__type__"

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// QueryResult query result
type QueryResult struct {
	Columns []ColumnInfo `json:"columns"`
	Rows    []Row        `json:"rows"`
	Total   int64        `json:"total"`
}

// Filter is a storage-level predicate.
// Leaf filters compare Field with Value using Operator (=, !=, >, <, >=, <=, LIKE, IN, IS NULL, IS NOT NULL).
// A filter with LogicOp set combines SubFilters with AND / OR; NOT negates its single sub filter.
type Filter struct {
	Field      string      `json:"field,omitempty"`
	Operator   string      `json:"operator,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	LogicOp    string      `json:"logic_op,omitempty"`
	SubFilters []Filter    `json:"sub_filters,omitempty"`
}

// IsEmpty reports whether the filter matches everything
func (f Filter) IsEmpty() bool {
	return f.Field == "" && f.LogicOp == "" && len(f.SubFilters) == 0
}

// And combines filters with AND, dropping empty ones
func And(filters ...Filter) Filter {
	parts := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if !f.IsEmpty() {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return Filter{}
	case 1:
		return parts[0]
	}
	return Filter{LogicOp: "AND", SubFilters: parts}
}

// QueryOptions query options
type QueryOptions struct {
	Filters       []Filter `json:"filters,omitempty"`
	OrderBy       string   `json:"order_by,omitempty"`
	Order         string   `json:"order,omitempty"` // ASC, DESC
	Limit         int      `json:"limit,omitempty"`
	Offset        int      `json:"offset,omitempty"`
	SelectColumns []string `json:"select_columns,omitempty"`
}

// InsertOptions insert options
type InsertOptions struct {
	Replace bool `json:"replace,omitempty"`
}
