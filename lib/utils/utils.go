package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^(?i)[a-z0-9._%+\-]+@(?:[a-z0-9\-]+\.)+[a-z]{2,}$`)

// ValidateEmail reports whether email looks like a deliverable address.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePassphrase reports whether a login passphrase is strong enough:
// at least 8 characters with a letter and a digit.
func ValidatePassphrase(passphrase string) bool {
	if len(passphrase) < 8 {
		return false
	}
	return strings.ContainsAny(passphrase, "0123456789") &&
		strings.IndexFunc(passphrase, func(r rune) bool {
			return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		}) >= 0
}

// Banner frames message in a box of '=' characters.
func Banner(message string) string {
	bannerLine := strings.Repeat("=", len(message)+4)
	return fmt.Sprintf("%s\n= %s =\n%s\n", bannerLine, message, bannerLine)
}

// PrintError prints message as an error banner followed by a blank line.
func PrintError(message string) {
	fmt.Println(Banner("ERROR: " + message))
}
