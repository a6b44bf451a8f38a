package domain

import "fmt"

// Source tags where a record was obtained from.
type Source int

const (
	// SourcePrimary marks records scraped from the primary ("ru") site.
	SourcePrimary Source = 0
	// SourceArchived marks records restored from web archives.
	SourceArchived Source = 1
	// SourceMigrated marks records scraped from the migrated ("xyz") site.
	SourceMigrated Source = 2
)

// String returns a short name for logs.
func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceArchived:
		return "archived"
	case SourceMigrated:
		return "migrated"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s >= SourcePrimary && s <= SourceMigrated
}
