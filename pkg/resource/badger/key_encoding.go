package badger

// Key layout:
//
//	t\x00{table}          table metadata
//	r\x00{table}\x00{pk}  one row
//
// NUL never appears in an OData identifier, so the row prefix of one
// table cannot match the rows of another table.
const (
	tableTag = "t\x00"
	rowTag   = "r\x00"
	keySep   = "\x00"
)

func tableKey(table string) []byte {
	return []byte(tableTag + table)
}

// tableFromKey returns the table name of a metadata key
func tableFromKey(key []byte) (string, bool) {
	s := string(key)
	if len(s) <= len(tableTag) || s[:len(tableTag)] != tableTag {
		return "", false
	}
	return s[len(tableTag):], true
}

// rowPrefix is the scan prefix of every row of table
func rowPrefix(table string) []byte {
	return []byte(rowTag + table + keySep)
}

func rowKey(table, pk string) []byte {
	return append(rowPrefix(table), pk...)
}
