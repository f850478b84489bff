package model

// GalleryMatch is the result of classifying a loaded URL against a site's
// gallery patterns. A zero Matched is a normal negative result, not an error.
type GalleryMatch struct {
	// URL is the classified URL.
	URL string `json:"url"`

	// Matched is true when one of the patterns matched.
	Matched bool `json:"matched"`

	// Pattern is the source of the first matching pattern.
	Pattern string `json:"pattern,omitempty"`

	// Index is the position of the matching pattern in declared order,
	// or -1 when nothing matched.
	Index int `json:"index"`
}

// NoMatch returns the negative classification of url.
func NoMatch(url string) GalleryMatch {
	return GalleryMatch{URL: url, Index: -1}
}

// InterceptStats counts the decisions taken by an interception engine.
type InterceptStats struct {
	NavigationsAllowed int `json:"navigations_allowed"`
	NavigationsBlocked int `json:"navigations_blocked"`
	ScriptsAllowed     int `json:"scripts_allowed"`
	ScriptsBlocked     int `json:"scripts_blocked"`
	ResourcesAllowed   int `json:"resources_allowed"`
	ResourcesBlocked   int `json:"resources_blocked"`
	PagesLoaded        int `json:"pages_loaded"`
	Galleries          int `json:"galleries"`
	RemovalRequests    int `json:"removal_requests"`
	RemovalFailures    int `json:"removal_failures"`
}

// TotalBlocked returns the number of blocked navigations, scripts and resources.
func (s InterceptStats) TotalBlocked() int {
	return s.NavigationsBlocked + s.ScriptsBlocked + s.ResourcesBlocked
}

// Add returns the field-wise sum of s and o.
func (s InterceptStats) Add(o InterceptStats) InterceptStats {
	return InterceptStats{
		NavigationsAllowed: s.NavigationsAllowed + o.NavigationsAllowed,
		NavigationsBlocked: s.NavigationsBlocked + o.NavigationsBlocked,
		ScriptsAllowed:     s.ScriptsAllowed + o.ScriptsAllowed,
		ScriptsBlocked:     s.ScriptsBlocked + o.ScriptsBlocked,
		ResourcesAllowed:   s.ResourcesAllowed + o.ResourcesAllowed,
		ResourcesBlocked:   s.ResourcesBlocked + o.ResourcesBlocked,
		PagesLoaded:        s.PagesLoaded + o.PagesLoaded,
		Galleries:          s.Galleries + o.Galleries,
		RemovalRequests:    s.RemovalRequests + o.RemovalRequests,
		RemovalFailures:    s.RemovalFailures + o.RemovalFailures,
	}
}
