package group

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member is one user's entry in a group. A member always holds at least one
// role; Validate strips entries that lost all of theirs.
type Member struct {
	Roles []string `json:"roles" bson:"roles"`
}

// Group is the membership and role aggregate backing one project's access
// control. It is created alongside the project and lives as long as it does.
type Group struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Creator     string              `json:"creator" bson:"creator"`
	Members     map[string]Member   `json:"members" bson:"members"`
	CustomRoles map[string][]string `json:"customRoles" bson:"custom_roles"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" bson:"updated_at"`
}

// NewGroup builds a group for creator, who is granted OWNER and LEADER.
func NewGroup(creator string) *Group {
	g := &Group{
		Creator:     creator,
		Members:     map[string]Member{},
		CustomRoles: map[string][]string{},
	}
	g.Validate()
	return g
}
