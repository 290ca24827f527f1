package identity

import "bytes"

// Matcher compares a captured feature set against one enrolled template and
// returns a verdict.  Implementations wrap the scanner vendor's matching
// primitive; the server never interprets the bytes itself, and the verdict
// carries no score.
type Matcher interface {
	Match(sample, template []byte) bool
}

// ExactMatcher matches when the feature set equals the template
// byte-for-byte.  Dev and test use only; a deployment plugs in the vendor
// SDK matcher.
type ExactMatcher struct{}

func (ExactMatcher) Match(sample, template []byte) bool {
	return bytes.Equal(sample, template)
}
