package uri

import (
	"net/url"
	"strings"
)

// RawSegment one path segment, split into its name and parenthesised arguments.
// A function call may carry a second group, the key predicate on its result.
type RawSegment struct {
	Name    string
	Args    string
	HasArgs bool
	Key     string
	HasKey  bool
}

func (s RawSegment) String() string {
	if s.HasArgs {
		return s.Name + "(" + s.Args + ")"
	}
	return s.Name
}

// Split breaks an escaped resource path into segments. Slashes inside quotes
// or parentheses do not split; each segment is percent-decoded.
func Split(path string) ([]RawSegment, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}

	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(path); i++ {
		switch c := path[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, badRequest("unbalanced parentheses in %q", path)
			}
		case c == '/' && depth == 0:
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	if inQuote {
		return nil, badRequest("unterminated string literal in %q", path)
	}
	if depth != 0 {
		return nil, badRequest("unbalanced parentheses in %q", path)
	}
	parts = append(parts, path[start:])

	segments := make([]RawSegment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, badRequest("empty segment in %q", path)
		}
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return nil, badRequest("invalid escape in segment %q", p)
		}
		seg, err := splitArgs(decoded)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func splitArgs(s string) (RawSegment, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if strings.ContainsAny(s, ")") {
			return RawSegment{}, badRequest("unbalanced parentheses in segment %q", s)
		}
		return RawSegment{Name: s}, nil
	}
	if open == 0 {
		return RawSegment{}, badRequest("segment %q has no name", s)
	}
	end := closingParen(s, open)
	if end < 0 {
		return RawSegment{}, badRequest("unbalanced parentheses in segment %q", s)
	}
	seg := RawSegment{Name: s[:open], Args: s[open+1 : end], HasArgs: true}

	rest := s[end+1:]
	if rest == "" {
		return seg, nil
	}
	if rest[0] != '(' || closingParen(rest, 0) != len(rest)-1 {
		return RawSegment{}, badRequest("unexpected text after ')' in segment %q", s)
	}
	seg.Key, seg.HasKey = rest[1:len(rest)-1], true
	return seg, nil
}

// closingParen returns the index of the ')' matching the '(' at open, or -1
func closingParen(s string, open int) int {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			if depth--; depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitList splits comma separated arguments, ignoring commas inside quotes or parentheses
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// splitAssignment splits "name=value"; ok is false when there is no '=' outside quotes
func splitAssignment(s string) (name, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			return "", "", false
		}
		if s[i] == '=' {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
		}
	}
	return "", "", false
}
