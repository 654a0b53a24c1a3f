package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Options the system query options of a request
type Options struct {
	Filter  string
	OrderBy string
	Top     int // -1 when absent
	Skip    int
	Count   bool
	Select  []string
}

var unsupportedOptions = map[string]bool{
	"$expand":        true,
	"$search":        true,
	"$apply":         true,
	"$compute":       true,
	"$levels":        true,
	"$index":         true,
	"$skiptoken":     true,
	"$deltatoken":    true,
	"$schemaversion": true,
}

// ParseOptions validates the system query options in q. Parameter aliases (@p)
// and custom options (no '$' prefix) are ignored. maxTop <= 0 means unlimited.
func ParseOptions(q url.Values, maxTop int) (*Options, error) {
	opts := &Options{Top: -1}

	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasPrefix(name, "$") {
			continue
		}
		values := q[name]
		if len(values) > 1 {
			return nil, invalidOption("%s is specified more than once", name)
		}
		value := strings.TrimSpace(values[0])

		switch name {
		case "$filter":
			if value == "" {
				return nil, invalidOption("$filter is empty")
			}
			opts.Filter = value
		case "$orderby":
			if value == "" {
				return nil, invalidOption("$orderby is empty")
			}
			opts.OrderBy = value
		case "$top":
			n, err := nonNegative(name, value)
			if err != nil {
				return nil, err
			}
			if maxTop > 0 && n > maxTop {
				return nil, invalidOption("$top %d exceeds the limit of %d", n, maxTop)
			}
			opts.Top = n
		case "$skip":
			n, err := nonNegative(name, value)
			if err != nil {
				return nil, err
			}
			opts.Skip = n
		case "$count":
			switch value {
			case "true":
				opts.Count = true
			case "false":
				opts.Count = false
			default:
				return nil, invalidOption("$count must be true or false, got %q", value)
			}
		case "$select":
			for _, item := range strings.Split(value, ",") {
				item = strings.TrimSpace(item)
				if item == "" {
					return nil, invalidOption("$select has an empty item")
				}
				opts.Select = append(opts.Select, item)
			}
		case "$format":
			if value != "json" && !strings.HasPrefix(value, "application/json") {
				return nil, invalidOption("$format %q is not supported", value)
			}
		default:
			if unsupportedOptions[name] {
				return nil, notSupported("query option %s", name)
			}
			return nil, invalidOption("unknown query option %s", name)
		}
	}
	return opts, nil
}

func nonNegative(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, invalidOption("%s must be a non-negative integer, got %q", name, value)
	}
	return n, nil
}
