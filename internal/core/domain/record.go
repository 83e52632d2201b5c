package domain

// PackageRecord is one candidate package returned by a package index query.
type PackageRecord struct {
	Name        string
	Version     string
	BuildNumber int
	BuildString string
	// Timestamp is the epoch milliseconds the candidate was uploaded, 0 when
	// the index does not report one.
	Timestamp int64
	// Dependencies are the candidate's run requirements as raw match specs.
	Dependencies []string
}
