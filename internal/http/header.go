package http

import "strings"

// Header is a single HTTP header name/value pair.
type Header struct {
	Name  string
	Value string
}

// IsValid reports whether the header has a name.
func (h Header) IsValid() bool {
	return h.Name != ""
}

// String renders the header as "Name: value".
func (h Header) String() string {
	return h.Name + ": " + h.Value
}

// ParseHeaderLine splits a raw response header line. Trailing CR/LF are
// stripped, the name ends at the first colon and exactly one leading space is
// removed from the value. ok is false when the line has no colon.
func ParseHeaderLine(line []byte) (h Header, ok bool) {
	s := strings.TrimRight(string(line), "\r\n")
	name, value, found := strings.Cut(s, ":")
	if !found {
		return Header{}, false
	}
	return Header{Name: name, Value: strings.TrimPrefix(value, " ")}, true
}

// lookupHeader returns the value of the first header named name, compared
// case-insensitively.
func lookupHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}
