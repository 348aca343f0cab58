package source

import "strings"

// IsSponsored reports whether a section header or article title belongs to
// paid placement content. Sponsored material never enters the digest.
func IsSponsored(text string) bool {
	return strings.Contains(strings.ToLower(text), "sponsor")
}
