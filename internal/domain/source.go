package domain

import (
	"strings"
	"time"
)

// SourceType tells local plan directories apart from git repositories.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceGit   SourceType = "git"
)

// Source is a registered planning import location of one owner.
type Source struct {
	ID          int64      `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Path        string     `json:"path"`
	Type        SourceType `json:"type"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

// DetectSourceType guesses the source type from its path.
func DetectSourceType(path string) SourceType {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		return SourceGit
	}
	return SourceLocal
}
