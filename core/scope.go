package core

// Scope is the authorization context an operation executes under. A nil
// *Scope, or a Scope whose ResourceIDs slice is nil, is administrative and
// authorizes every operation. A non-nil empty ResourceIDs slice is a caller
// configuration error (ErrInvalidScope). Multiple ids denote membership in
// several identity groups (e.g. personal + workspace); a thread is visible
// when its owner matches any of them.
type Scope struct {
	ResourceIDs []string       `json:"resourceId,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// NewScope builds a single-identity scope.
func NewScope(resourceID string) *Scope {
	return &Scope{ResourceIDs: []string{resourceID}}
}

// GroupScope builds a multi-identity scope authorizing any of the given ids.
func GroupScope(resourceIDs ...string) *Scope {
	return &Scope{ResourceIDs: resourceIDs}
}

// Admin reports whether the scope is unrestricted.
func (s *Scope) Admin() bool {
	return s == nil || s.ResourceIDs == nil
}

// Validate rejects the empty-but-restricted scope, which authorizes nothing
// and always signals a caller bug.
func (s *Scope) Validate() error {
	if s != nil && s.ResourceIDs != nil && len(s.ResourceIDs) == 0 {
		return ErrInvalidScope
	}
	return nil
}

// Allows reports whether a thread owned by resourceID is accessible.
func (s *Scope) Allows(resourceID string) bool {
	if s.Admin() {
		return true
	}
	for _, id := range s.ResourceIDs {
		if id == resourceID {
			return true
		}
	}
	return false
}

// Owner returns the identity assigned to threads this scope creates: the
// first resource id, or "" for administrative scopes.
func (s *Scope) Owner() string {
	if s.Admin() || len(s.ResourceIDs) == 0 {
		return ""
	}
	return s.ResourceIDs[0]
}
