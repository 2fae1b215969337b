// Package ipv4 recognizes dotted-quad IPv4 addresses in text.
package ipv4

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
)

// Pattern matches a dotted quad. Octet ranges are not checked, so 999.1.1.1 matches.
var Pattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

var exact = regexp.MustCompile(`^` + Pattern.String() + `$`)

// Validate returns domain.ErrInvalidIP unless s is exactly one dotted quad.
func Validate(s string) error {
	if !exact.MatchString(s) {
		return fmt.Errorf("%q: %w", s, domain.ErrInvalidIP)
	}
	return nil
}
