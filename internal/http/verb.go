package http

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedVerb = errors.New("http: unsupported verb")

// Verb is an HTTP method supported by the manager.
type Verb int

const (
	VerbGET Verb = iota
	VerbPOST
	VerbPUT
)

func (v Verb) String() string {
	switch v {
	case VerbGET:
		return "GET"
	case VerbPOST:
		return "POST"
	case VerbPUT:
		return "PUT"
	default:
		return fmt.Sprintf("Verb(%d)", int(v))
	}
}

func (v Verb) valid() bool {
	return v >= VerbGET && v <= VerbPUT
}

// ParseVerb maps a method name, in any case, to a Verb.
func ParseVerb(s string) (Verb, error) {
	switch strings.ToUpper(s) {
	case "GET":
		return VerbGET, nil
	case "POST":
		return VerbPOST, nil
	case "PUT":
		return VerbPUT, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVerb, s)
	}
}
