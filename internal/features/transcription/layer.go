package transcription

import (
	"context"
	"slices"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"

	"go.uber.org/zap"
)

// Layer groups the pages of one transcription pass over a manifest. It is
// promoted to an external AnnotationCollection once any of its pages has
// been promoted.
type Layer struct {
	ID      string `json:"id" bson:"id"`
	Label   string `json:"label" bson:"label"`
	Creator string `json:"creator,omitempty" bson:"creator,omitempty"`
	Pages   []Page `json:"pages" bson:"pages"`

	State PersistState `json:"-" bson:"-"`
}

// Normalize derives persistence state for the layer and its tree.
func (l *Layer) Normalize(idBase string) {
	if IsForeignID(l.ID, idBase) {
		l.State = StateForeign
	} else if l.State == "" {
		l.State = StateLocal
	}
	for i := range l.Pages {
		l.Pages[i].Normalize(idBase)
	}
}

func (l *Layer) hasContent() bool {
	for i := range l.Pages {
		if l.Pages[i].State == StateForeign || l.Pages[i].hasContent() {
			return true
		}
	}
	return false
}

// FindPage returns a pointer into Pages for the page with the given id.
func (l *Layer) FindPage(id string) (*Page, error) {
	for i := range l.Pages {
		if l.Pages[i].ID == id {
			return &l.Pages[i], nil
		}
	}
	return nil, apperror.NotFound("no page %s in layer %s", id, l.ID)
}

// ReplacePageID rewrites every reference to a page id inside the layer: the
// pages entry itself, the neighbours' prev/next links and the page's own
// position. Called when a page is promoted so the stale local id survives
// nowhere in the aggregate.
func (l *Layer) ReplacePageID(oldID, newID string) {
	if oldID == newID {
		return
	}
	for i := range l.Pages {
		if l.Pages[i].ID == oldID {
			l.Pages[i].ID = newID
		}
		if l.Pages[i].Prev == oldID {
			l.Pages[i].Prev = newID
		}
		if l.Pages[i].Next == oldID {
			l.Pages[i].Next = newID
		}
	}
}

// RebuildPageOrder reorders the layer's pages to the given id sequence and
// recomputes prev/next links. The ids must be a permutation of the current
// ones. It returns the ids of pages whose links changed; those count as
// content changes and need creator attribution even though their own bodies
// did not change.
func (l *Layer) RebuildPageOrder(orderedIDs []string) ([]string, error) {
	if len(orderedIDs) != len(l.Pages) {
		return nil, apperror.BadRequest("page order lists %d ids, layer has %d pages", len(orderedIDs), len(l.Pages))
	}

	byID := make(map[string]Page, len(l.Pages))
	for _, p := range l.Pages {
		byID[p.ID] = p
	}

	reordered := make([]Page, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		p, ok := byID[id]
		if !ok {
			return nil, apperror.BadRequest("page %s is not in this layer", id)
		}
		delete(byID, id)
		reordered = append(reordered, p)
	}

	var changed []string
	for i := range reordered {
		prev, next := "", ""
		if i > 0 {
			prev = reordered[i-1].ID
		}
		if i < len(reordered)-1 {
			next = reordered[i+1].ID
		}
		if reordered[i].Prev != prev || reordered[i].Next != next {
			changed = append(changed, reordered[i].ID)
		}
		reordered[i].Prev = prev
		reordered[i].Next = next
	}

	l.Pages = reordered
	return changed, nil
}

// PageIDs returns the current page id order.
func (l *Layer) PageIDs() []string {
	ids := make([]string, len(l.Pages))
	for i := range l.Pages {
		ids[i] = l.Pages[i].ID
	}
	return ids
}

func (l *Layer) document() map[string]any {
	items := make([]any, len(l.Pages))
	for i, p := range l.Pages {
		items[i] = map[string]any{
			"@id":    p.ID,
			"type":   "AnnotationPage",
			"label":  p.Label,
			"target": p.Target,
		}
	}
	doc := map[string]any{
		"@id":   l.ID,
		"type":  "AnnotationCollection",
		"label": l.Label,
		"total": len(l.Pages),
		"items": items,
	}
	if l.Creator != "" {
		doc["creator"] = l.Creator
	}
	return doc
}

// Update runs the promotion state machine for the layer. Promotion rewrites
// every page's partOf to the new foreign id.
func (l *Layer) Update(ctx context.Context, store Store) (Layer, error) {
	l.Normalize(store.IDBase())

	if l.State != StateForeign {
		if !l.hasContent() {
			return l.Embedded(), nil
		}
		return l.promote(ctx, store)
	}

	current, err := store.Fetch(ctx, l.ID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return l.promote(ctx, store)
		}
		return Layer{}, err
	}

	result, err := store.Overwrite(ctx, mergeDocs(current, l.document()))
	if err != nil {
		return Layer{}, err
	}
	if id := DocumentID(result); id != "" {
		l.ID = id
	}
	return l.Embedded(), nil
}

func (l *Layer) promote(ctx context.Context, store Store) (Layer, error) {
	minted := l.ID
	if !IsForeignID(minted, store.IDBase()) {
		minted = MintForeignID(store.IDBase(), l.ID)
	}
	doc := l.document()
	doc["@id"] = minted

	created, err := store.Create(ctx, doc)
	if err != nil {
		return Layer{}, err
	}

	if id := DocumentID(created); id != "" {
		l.ID = id
	} else {
		l.ID = minted
	}
	l.State = StateForeign
	for i := range l.Pages {
		l.Pages[i].PartOf = l.ID
	}
	// Already-promoted pages hold the stale partOf in their store copy;
	// overwrite them so the new collection id lands in the same operation.
	for i := range l.Pages {
		if l.Pages[i].State != StateForeign {
			continue
		}
		if _, err := l.Pages[i].Update(ctx, store); err != nil {
			return Layer{}, err
		}
	}
	return l.Embedded(), nil
}

// Embedded returns the representation stored inside the project.
func (l Layer) Embedded() Layer {
	out := l
	out.Pages = make([]Page, len(l.Pages))
	for i, p := range l.Pages {
		out.Pages[i] = p.Embedded()
	}
	return out
}

// Delete removes the layer's external documents: every promoted page first,
// then the collection itself. Removal is best-effort by policy; failures are
// logged and swallowed so the local project update proceeds.
func (l *Layer) Delete(ctx context.Context, store Store, logger *zap.Logger) {
	for i := range l.Pages {
		if err := l.Pages[i].Delete(ctx, store); err != nil {
			logger.Warn("leaving orphaned page document in annotation store",
				zap.String("page", l.Pages[i].ID), zap.Error(err))
		}
	}
	if l.State != StateForeign {
		return
	}
	if err := store.Delete(ctx, l.ID); err != nil {
		logger.Warn("leaving orphaned layer document in annotation store",
			zap.String("layer", l.ID), zap.Error(err))
	}
}

// ContainsPage reports whether the layer holds a page with the given id.
func (l *Layer) ContainsPage(id string) bool {
	return slices.ContainsFunc(l.Pages, func(p Page) bool { return p.ID == id })
}
