package empire

import (
	"planets-engine/internal/shared/database"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Empire struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Role      Role            `db:"role" json:"role"`
	Credits   int64           `db:"credits" json:"credits"`
	CreatedAt database.Millis `db:"created_at" json:"created_at"`
	UpdatedAt database.Millis `db:"updated_at" json:"updated_at"`
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	default:
		return RoleUser
	}
}
