package auth

// Principal is the identity extracted from a verified access token.
type Principal struct {
	Subject       string
	Username      string
	Groups        []string
	Authenticated bool
}

// Anonymous returns a fresh unauthenticated principal. Always a new value:
// principals are per-request and never shared or mutated across requests.
func Anonymous() Principal {
	return Principal{}
}

// InGroup reports whether the principal belongs to the named IdP group.
func (p Principal) InGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}
