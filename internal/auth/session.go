package auth

// Session is the resolved identity of the signed-in user. It is built once
// at login (or from token claims on each request) and passed explicitly to
// the domain services instead of being read from ambient globals.
type Session struct {
	UserID         string
	Name           string
	Role           string
	KindergartenID string
	Children       []string
}

// IsStaff reports whether the session belongs to a kindergarten employee.
func (s Session) IsStaff() bool { return s.Role == "ansatt" }
