package attribution

import "strings"

// Class is the outcome of classifying a referrer hostname.
type Class int

const (
	// ClassIndeterminate means the hostname could not be decomposed into a
	// usable domain label.
	ClassIndeterminate Class = iota
	// ClassIgnored means the hostname matched the ignore-list (self-referrals
	// and configured exclusions).
	ClassIgnored
	// ClassOrganic means the extracted label is a known search/social source.
	ClassOrganic
	// ClassReferral is any other resolvable referrer.
	ClassReferral
)

func (c Class) String() string {
	switch c {
	case ClassIgnored:
		return "ignored"
	case ClassOrganic:
		return "organic"
	case ClassReferral:
		return "referral"
	}
	return "indeterminate"
}

// Classifier decides how a referrer hostname should be treated.
type Classifier struct {
	ignore  []string
	organic map[string]bool
}

// NewClassifier builds a classifier from an ignore-list of hostname
// substrings and a set of organic domain labels. Matching is
// case-insensitive on both.
func NewClassifier(ignore, organic []string) *Classifier {
	c := &Classifier{organic: make(map[string]bool, len(organic))}
	for _, s := range ignore {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			c.ignore = append(c.ignore, s)
		}
	}
	for _, s := range organic {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			c.organic[s] = true
		}
	}
	return c
}

// Classify returns the class of a hostname plus the extracted domain label.
// The label is empty unless the class is organic or referral.
func (c *Classifier) Classify(hostname string) (Class, string) {
	hostname = strings.ToLower(hostname)
	for _, ignored := range c.ignore {
		if strings.Contains(hostname, ignored) {
			return ClassIgnored, ""
		}
	}

	label := domainLabel(hostname)
	if label == "" {
		return ClassIndeterminate, ""
	}
	if c.organic[label] {
		return ClassOrganic, label
	}
	return ClassReferral, label
}

// domainLabel extracts the most meaningful label from a hostname:
// "example.com" -> "example", "www.example.com" -> "example",
// "a.b.c.d.com" -> "d". Hostnames with fewer than two labels (e.g.
// "localhost") are unresolvable and yield "".
func domainLabel(hostname string) string {
	parts := strings.Split(hostname, ".")
	switch {
	case len(parts) == 2:
		return parts[0]
	case len(parts) == 3:
		return parts[1]
	case len(parts) > 3:
		return parts[len(parts)-2]
	}
	return ""
}
