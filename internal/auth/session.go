package auth

import "time"

// Session is the per-user authentication state read by the example handlers.
type Session struct {
	AccessToken string
	Expiry      time.Time
	AccountID   string
	AccountName string
	BasePath    string
	UserName    string
	UserEmail   string
}

// CheckToken reports whether the session holds a token that stays valid for
// at least buffer from now.
func (s *Session) CheckToken(buffer time.Duration) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return time.Now().Add(buffer).Before(s.Expiry)
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

var flashKinds = []string{"info", "error"}
