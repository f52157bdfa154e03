package attribution

import (
	"net/url"
	"strings"

	"github.com/ignite/attribution-relay/internal/pkg/logger"
)

// queryParams is the fixed ordered set of recognized URL parameters. The two
// click IDs are named without the utm_ prefix on the URL but stored with it.
var queryParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"gclid",
	"fbclid",
}

// ResolverConfig parameterizes the resolution policy. Every knob that varies
// across deployments lives here; the resolver itself holds no mutable state.
type ResolverConfig struct {
	// ReferrersToIgnore are hostname substrings treated as self-referrals.
	ReferrersToIgnore []string
	// OrganicHostnames are domain labels classified as organic search/social.
	OrganicHostnames []string
	// ReplaceableMediums are the stored-medium sentinel values that a new
	// referrer signal is allowed to overwrite. An empty stored medium is
	// always replaceable.
	ReplaceableMediums []string
	// LowercaseClickIDs lower-cases gclid/fbclid on capture. Off by default:
	// click IDs are opaque tokens and are preserved as received.
	LowercaseClickIDs bool
}

// Resolver implements the attribution resolution policy: given the page URL,
// the referrer, and the previously stored record, it decides what the stored
// record should become. It performs no I/O.
type Resolver struct {
	classifier        *Classifier
	replaceable       map[string]bool
	lowercaseClickIDs bool
}

// NewResolver builds a resolver from its policy configuration.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		classifier:        NewClassifier(cfg.ReferrersToIgnore, cfg.OrganicHostnames),
		replaceable:       map[string]bool{"": true},
		lowercaseClickIDs: cfg.LowercaseClickIDs,
	}
	for _, m := range cfg.ReplaceableMediums {
		r.replaceable[strings.ToLower(m)] = true
	}
	return r
}

// Resolve computes the new attribution record for a page view. It returns
// the record to store and true, or a zero record and false when the stored
// state should be left untouched.
//
// Precedence: explicit campaign parameters on the URL always win; a referrer
// only overwrites stored attribution whose medium is a replaceable sentinel;
// direct traffic only writes when nothing is stored at all.
func (r *Resolver) Resolve(pageURL, referrer string, stored *Record) (Record, bool) {
	if rec, ok := r.fromQuery(pageURL); ok {
		return rec, true
	}

	host := referrerHost(referrer)
	if host != "" {
		return r.fromReferrer(host, stored)
	}

	// Direct traffic never overwrites known attribution.
	if stored == nil {
		return Direct(), true
	}
	return Record{}, false
}

// fromQuery handles the highest-precedence branch: recognized campaign
// parameters on the current URL.
func (r *Resolver) fromQuery(pageURL string) (Record, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		logger.Warn("unparseable page url", "url", pageURL, "error", err.Error())
		return Record{}, false
	}
	query := u.Query()

	present := false
	for _, p := range queryParams {
		if query.Has(p) {
			present = true
			break
		}
	}
	if !present {
		return Record{}, false
	}

	rec := Record{
		Source:   strings.ToLower(query.Get("utm_source")),
		Medium:   strings.ToLower(query.Get("utm_medium")),
		Campaign: strings.ToLower(query.Get("utm_campaign")),
		Term:     strings.ToLower(query.Get("utm_term")),
		Content:  strings.ToLower(query.Get("utm_content")),
		GCLID:    query.Get("gclid"),
		FBCLID:   query.Get("fbclid"),
	}
	if r.lowercaseClickIDs {
		rec.GCLID = strings.ToLower(rec.GCLID)
		rec.FBCLID = strings.ToLower(rec.FBCLID)
	}
	return rec, true
}

// fromReferrer handles the referrer branch, including the stickiness
// tie-break: stored attribution with a non-sentinel medium stands.
func (r *Resolver) fromReferrer(host string, stored *Record) (Record, bool) {
	class, label := r.classifier.Classify(host)
	switch class {
	case ClassIgnored, ClassIndeterminate:
		return Record{}, false
	}

	if stored != nil && !r.replaceable[strings.ToLower(stored.Medium)] {
		return Record{}, false
	}

	medium := "referral"
	if class == ClassOrganic {
		medium = "organic"
	}
	return Record{Source: label, Medium: medium}, true
}

// referrerHost extracts the hostname from a referrer URL. A malformed or
// hostless referrer is treated as no referrer at all.
func referrerHost(referrer string) string {
	if referrer == "" {
		return ""
	}
	u, err := url.Parse(referrer)
	if err != nil {
		logger.Warn("unparseable referrer", "referrer", referrer, "error", err.Error())
		return ""
	}
	return u.Hostname()
}
