package session

import (
	"fmt"
	"regexp"
)

var (
	nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
	codeRegexp = regexp.MustCompile(`^[A-Za-z0-9._~-]{1,128}$`)
)

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// ValidateCode checks a bot or conversation code before it is used as a URL path segment.
func ValidateCode(kind, code string) error {
	if !codeRegexp.MatchString(code) {
		return fmt.Errorf("invalid %s code %q", kind, code)
	}
	return nil
}
