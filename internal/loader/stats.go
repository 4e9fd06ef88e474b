package loader

import "unicode/utf8"

// LoadError pairs a failed source with the error that broke it.
type LoadError struct {
	// Source is the document name (or path, when no name could be derived).
	Source string
	// Err is the load failure.
	Err error
}

// Stats summarises a batch of load results.
type Stats struct {
	Total      int
	Successful int
	Failed     int

	// TotalChars is the combined rune count of all successfully loaded texts.
	TotalChars int

	// AvgLength is the mean rune count per successful document; zero when
	// nothing loaded.
	AvgLength float64

	// Errors lists every failed result in input order.
	Errors []LoadError
}

// Statistics tallies successes, failures, and text volume across results.
func Statistics(results []Result) Stats {
	s := Stats{Total: len(results)}
	for _, r := range results {
		if r.OK() {
			s.Successful++
			s.TotalChars += utf8.RuneCountInString(r.Text)
		} else {
			s.Failed++
			s.Errors = append(s.Errors, LoadError{Source: r.Source, Err: r.Err})
		}
	}
	if s.Successful > 0 {
		s.AvgLength = float64(s.TotalChars) / float64(s.Successful)
	}
	return s
}
