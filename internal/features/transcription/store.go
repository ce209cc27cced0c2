package transcription

import (
	"context"
	"strings"
)

// PersistState tracks where an entity's document of record lives. Local
// entities exist only inside their project aggregate; foreign entities have
// been promoted to the external annotation store and keep that id forever.
type PersistState string

const (
	StateLocal   PersistState = "local"
	StateForeign PersistState = "foreign"
)

// Store is the external annotation store as the entities consume it.
// Implemented by rerum.Client; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, doc map[string]any) (map[string]any, error)
	Update(ctx context.Context, doc map[string]any) (map[string]any, error)
	Overwrite(ctx context.Context, doc map[string]any) (map[string]any, error)
	Fetch(ctx context.Context, uri string) (map[string]any, error)
	Delete(ctx context.Context, uri string) error
	IDBase() string
}

// AgentResolver turns a user id into the agent URI stamped on promoted
// documents.
type AgentResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// IsForeignID reports whether id was minted by the external store.
func IsForeignID(id, idBase string) bool {
	return idBase != "" && strings.HasPrefix(id, idBase)
}

// MintForeignID derives the foreign id for a promoted entity: the store's id
// prefix joined with the final path segment of the local id.
func MintForeignID(idBase, localID string) string {
	seg := localID
	if i := strings.LastIndex(localID, "/"); i >= 0 {
		seg = localID[i+1:]
	}
	return strings.TrimSuffix(idBase, "/") + "/" + seg
}

// DocumentID extracts the id of a store document.
func DocumentID(doc map[string]any) string {
	for _, key := range []string{"@id", "id"} {
		if v, ok := doc[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// mergeDocs overlays the local document onto the server's current copy so an
// overwrite keeps server-managed keys (__rerum, @context) the entity does
// not model.
func mergeDocs(current, local map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(local))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}
