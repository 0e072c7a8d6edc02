package domain

import "time"

// Location is a directory entry mapping office IP addresses to a location
// key. The core only ever reads these; managing the directory is an
// operational task done directly against the database.
type Location struct {
	Name        string
	IPAddresses []string
	CreatedAt   time.Time
}
