// Package fingerprint derives stable identifiers for plan-derived review items.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/conorfennell/studyplan/internal/domain"
)

// Normalize concatenates the identifying parts of a task after cleaning each
// one. It trims whitespace, lowercases and normalizes line endings before
// joining with newlines so adjacent fields cannot run together.
func Normalize(task domain.PlanTask) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	return strings.Join([]string{
		normalizePart(task.Subject),
		normalizePart(task.Title),
		task.Date.Format("2006-01-02"),
	}, "\n")
}

// TaskID hashes a normalized task. Plans that carry no explicit id use it as
// their source task id.
func TaskID(task domain.PlanTask) string {
	return hash(Normalize(task))
}

// ItemID is the id of the review item scheduled offsetDays after a task's
// date. The anchor uses offset 0.
func ItemID(ownerID, sourceTaskID string, offsetDays int) string {
	return hash(strings.Join([]string{ownerID, sourceTaskID, strconv.Itoa(offsetDays)}, "\n"))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}
