package version

import (
	"regexp"
	"testing"
)

func TestVersion(t *testing.T) {
	if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(Version()) {
		t.Errorf("unexpected version %q", Version())
	}
	if UserAgent() != "asynchttp/"+Version() {
		t.Errorf("unexpected user agent %q", UserAgent())
	}
}
