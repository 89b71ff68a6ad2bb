package matching

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithSpatialRadius sets the hard prefilter radius in metres.
func WithSpatialRadius(m float64) Option {
	return func(mt *Matcher) {
		if m > 0 {
			mt.spatialRadius = m
		}
	}
}

// WithAutoMergeRadius sets the radius below which proximity alone is enough.
func WithAutoMergeRadius(m float64) Option {
	return func(mt *Matcher) {
		if m >= 0 {
			mt.autoMergeRadius = m
		}
	}
}

// WithTitleSimilarity sets the Jaro-Winkler threshold a title must exceed.
func WithTitleSimilarity(th float64) Option {
	return func(mt *Matcher) {
		if th > 0 && th <= 1 {
			mt.titleThreshold = th
		}
	}
}
