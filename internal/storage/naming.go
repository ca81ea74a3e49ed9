package storage

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

var (
	nonWordRe = regexp.MustCompile(`[^\w\s-]`)
	spaceRe   = regexp.MustCompile(`\s+`)
	dashRunRe = regexp.MustCompile(`-+`)
)

// ItemFilename derives the vault file name for an inbound item from its
// subject and source id. The subject part is capped at 27 characters and
// the id part at 8, which keeps names readable while the id suffix makes
// collisions between distinct messages practically impossible.
func ItemFilename(source models.Source, subject, id string) string {
	desc := strings.TrimSpace(subject)
	desc = nonWordRe.ReplaceAllString(desc, "")
	desc = spaceRe.ReplaceAllString(desc, " ")
	if len(desc) > 27 {
		desc = strings.TrimSpace(desc[:27])
	}
	desc = strings.ReplaceAll(desc, " ", "-")
	desc = dashRunRe.ReplaceAllString(desc, "-")
	desc = strings.Trim(desc, "-")

	prefix := "EMAIL"
	if source == models.SourceChat {
		prefix = "CHAT"
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s - %s_%s.md", prefix, desc, short)
}

// PlanID derives a plan identifier from the creation time and the subject.
// Characters invalid in file names are replaced before truncating to 50.
func PlanID(subject string, at time.Time) string {
	safe := subject
	for _, c := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"} {
		safe = strings.ReplaceAll(safe, c, "-")
	}
	safe = dashRunRe.ReplaceAllString(safe, "-")
	if len(safe) > 50 {
		safe = safe[:50]
	}
	safe = strings.Trim(safe, "-")
	return fmt.Sprintf("PLAN_%s_%s", at.Format("20060102_150405"), safe)
}
