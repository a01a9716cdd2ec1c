package entities

import "time"

// Workspace is the per-request working directory. It owns the saved
// archive and the extraction subtree and is removed when the request ends.
type Workspace struct {
	ID          string
	Root        string
	ArchivePath string
	ExtractDir  string
	CreatedAt   time.Time
}
