package services

import (
	"strings"
	"time"

	"daily-challenge-service/utils"
)

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	UserID   string
	Premium  bool
	Timezone string
}

func (i Identity) validate() error {
	if strings.TrimSpace(i.UserID) == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// LocalToday is "now" in the user's timezone; day keys and week starts derive from it.
func LocalToday(now time.Time, ident Identity, fallbackTZ string) time.Time {
	return utils.LocalNow(now, ident.Timezone, fallbackTZ)
}
