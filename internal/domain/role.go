package domain

// Role enumerates admin panel roles.
type Role string

const (
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// roleRank orders roles; a higher rank satisfies every lower requirement.
// Unknown roles rank zero and satisfy nothing.
var roleRank = map[Role]int{
	RoleEditor: 1,
	RoleAdmin:  2,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return roleRank[r] > 0
}

// Satisfies reports whether r meets the required role.
func (r Role) Satisfies(required Role) bool {
	have, need := roleRank[r], roleRank[required]
	return have > 0 && need > 0 && have >= need
}
