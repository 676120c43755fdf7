package cloudscribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// maxLoginNameAttempts bounds the regenerate-and-retry loop when suggested
// names collide. Anything beyond this is surfaced as a conflict.
const maxLoginNameAttempts = 4

// noExcludedUser is passed to availability checks that should consider
// every existing account.
var noExcludedUser = uuid.Nil

// SuggestLoginNameFromEmail derives a login name from the local part of an
// email address, stripped down to characters that are safe in a login name.
func SuggestLoginNameFromEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}

	name := strings.Trim(b.String(), ".-_")
	if name == "" {
		name = "user"
	}
	return name
}

// alternateLoginName appends a short deterministic suffix for the given
// attempt, so retries under a uniqueness conflict do not loop over the same
// candidate.
func alternateLoginName(base, email string, attempt int) string {
	id, err := hashid.NewUUID(fmt.Sprintf("%s#%d", email, attempt))
	if err != nil {
		id = uuid.New()
	}
	suffix := strings.ReplaceAll(id.String(), "-", "")[:4]
	return base + "-" + suffix
}

// ResolveAvailableLoginName returns the first candidate login name that
// passes the site availability check, starting from the email-derived
// suggestion. It gives up after a bounded number of attempts.
func ResolveAvailableLoginName(ctx context.Context, users Users, siteID uuid.UUID, email string, excludeID uuid.UUID) (string, error) {
	base := SuggestLoginNameFromEmail(email)

	candidate := base
	for attempt := 0; attempt < maxLoginNameAttempts; attempt++ {
		available, err := users.LoginNameAvailable(ctx, siteID, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if available {
			return candidate, nil
		}
		candidate = alternateLoginName(base, email, attempt+1)
	}

	return "", ErrLoginNameTaken
}
