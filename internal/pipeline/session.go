package pipeline

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// Session identifies one pipeline run. RunID is fresh per run; state is
// never shared between sessions.
type Session struct {
	AppName string
	UserID  string
	RunID   string
}

func NewSession(appName, userID string) Session {
	return Session{
		AppName: strings.TrimSpace(appName),
		UserID:  strings.TrimSpace(userID),
		RunID:   ulid.Make().String(),
	}
}
