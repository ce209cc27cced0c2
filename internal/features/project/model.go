package project

import (
	"context"
	"time"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/group"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/permission"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/transcription"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Metadata is a display label/value pair attached to a project.
type Metadata struct {
	Label string `bson:"label" json:"label"`
	Value string `bson:"value" json:"value"`
}

// Project aggregates the transcription layers of one IIIF manifest and
// points at the group that controls access to them. Layers are embedded by
// value; promoted entities keep only their embedded representation here.
type Project struct {
	ID       primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Label    string                `bson:"label" json:"label"`
	Metadata []Metadata            `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Manifest string                `bson:"manifest" json:"manifest"`
	Creator  string                `bson:"creator" json:"creator"`
	Group    primitive.ObjectID    `bson:"group" json:"group"`
	Layers   []transcription.Layer `bson:"layers" json:"layers"`
	Tools    []string              `bson:"tools,omitempty" json:"tools,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	// access-control group, loaded at most once per request
	group *group.Group
}

// GroupLoader is the slice of the group service the access check needs.
// Satisfied by group.GroupService.
type GroupLoader interface {
	GetGroupByID(ctx context.Context, id primitive.ObjectID) (*group.Group, error)
}

// Normalize derives persistence state across the embedded layer tree.
func (p *Project) Normalize(idBase string) {
	for i := range p.Layers {
		p.Layers[i].Normalize(idBase)
	}
}

// CheckUserAccess reports whether the user holds a permission matching the
// action/scope/entity triple. Non-members get false, not an error; the
// route layer translates false to 403.
func (p *Project) CheckUserAccess(ctx context.Context, groups GroupLoader, userID, action, scope, entity string) (bool, error) {
	if p.group == nil {
		g, err := groups.GetGroupByID(ctx, p.Group)
		if err != nil {
			return false, err
		}
		p.group = g
	}
	if !p.group.HasMember(userID) {
		return false, nil
	}
	perms, err := p.group.EffectivePermissions(userID)
	if err != nil {
		return false, nil
	}
	return permission.AnyMatches(perms, action, scope, entity), nil
}

// FindLayer returns a pointer into Layers for the layer with the given id.
func (p *Project) FindLayer(id string) (*transcription.Layer, error) {
	for i := range p.Layers {
		if p.Layers[i].ID == id {
			return &p.Layers[i], nil
		}
	}
	return nil, errNoLayer(id, p.ID.Hex())
}

// RemoveLayer drops the layer with the given id from the aggregate.
func (p *Project) RemoveLayer(id string) error {
	for i := range p.Layers {
		if p.Layers[i].ID == id {
			p.Layers = append(p.Layers[:i], p.Layers[i+1:]...)
			return nil
		}
	}
	return errNoLayer(id, p.ID.Hex())
}

// LayerForPage returns the layer containing the page with the given id.
func (p *Project) LayerForPage(pageID string) (*transcription.Layer, error) {
	for i := range p.Layers {
		if p.Layers[i].ContainsPage(pageID) {
			return &p.Layers[i], nil
		}
	}
	return nil, errNoLayer("holding page "+pageID, p.ID.Hex())
}

func errNoLayer(id, projectID string) error {
	return apperror.NotFound("no layer %s in project %s", id, projectID)
}
