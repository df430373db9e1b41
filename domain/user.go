package domain

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RolePharmacist Role = "PHARMACIST"
	RoleStaff      Role = "STAFF"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RolePharmacist, RoleStaff:
		return true
	}
	return false
}

type User struct {
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"password_hash,omitempty" db:"password_hash"`
	Name         string `json:"name" db:"name"`
	Role         Role   `json:"role" db:"role"`
}
