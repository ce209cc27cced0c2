package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email       string             `bson:"email" json:"email"`
	DisplayName string             `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Agent       string             `bson:"agent,omitempty" json:"agent,omitempty"`
	// Temporary users are placeholders created by an invite; they are merged
	// into a real identity on first login and purged when the invite goes
	// stale.
	IsTemporary bool       `bson:"is_temporary" json:"is_temporary"`
	InviteCode  string     `bson:"invite_code,omitempty" json:"-"`
	InvitedAt   *time.Time `bson:"invited_at,omitempty" json:"invited_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}
