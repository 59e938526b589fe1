package entity

import (
	"time"

	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// User is an entry of the user directory
type User struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	DisplayName    string        `json:"display_name"`
	Role           workflow.Role `json:"role"`
	OperationsRoom bool          `json:"operations_room"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Actor converts the user into the guard's view of a caller
func (u *User) Actor() workflow.Actor {
	return workflow.Actor{
		ID:             u.ID,
		Role:           u.Role,
		OperationsRoom: u.OperationsRoom,
		Active:         u.Active,
	}
}
