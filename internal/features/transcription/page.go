package transcription

import (
	"context"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
)

// Page is one canvas worth of transcription inside a layer. It starts as an
// embedded sub-document of the project and is promoted to an external
// AnnotationPage once it holds at least one line.
type Page struct {
	ID      string `json:"id" bson:"id"`
	Label   string `json:"label" bson:"label"`
	Target  string `json:"target" bson:"target"`
	Items   []Line `json:"items" bson:"items"`
	PartOf  string `json:"partOf,omitempty" bson:"part_of,omitempty"`
	Prev    string `json:"prev,omitempty" bson:"prev,omitempty"`
	Next    string `json:"next,omitempty" bson:"next,omitempty"`
	Creator string `json:"creator,omitempty" bson:"creator,omitempty"`

	State PersistState `json:"-" bson:"-"`
}

// Normalize derives persistence state for the page and its lines.
func (p *Page) Normalize(idBase string) {
	if IsForeignID(p.ID, idBase) {
		p.State = StateForeign
	} else if p.State == "" {
		p.State = StateLocal
	}
	for i := range p.Items {
		p.Items[i].Normalize(idBase)
	}
}

// Embedded returns the representation stored inside the parent layer: the
// page's own fields with line bodies stripped where they live externally.
func (p Page) Embedded() Page {
	out := p
	out.Items = make([]Line, len(p.Items))
	for i, line := range p.Items {
		out.Items[i] = line.Embedded()
	}
	return out
}

func (p *Page) hasContent() bool {
	return len(p.Items) > 0
}

// FindLine returns a pointer into Items for the line with the given id.
func (p *Page) FindLine(id string) (*Line, error) {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i], nil
		}
	}
	return nil, apperror.NotFound("no line %s on page %s", id, p.ID)
}

// RemoveLine drops a line from the page.
func (p *Page) RemoveLine(id string) error {
	for i := range p.Items {
		if p.Items[i].ID == id {
			p.Items = append(p.Items[:i], p.Items[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("no line %s on page %s", id, p.ID)
}

func (p *Page) document() map[string]any {
	items := make([]any, len(p.Items))
	for i, line := range p.Items {
		items[i] = line.document()
	}
	doc := map[string]any{
		"@id":    p.ID,
		"type":   "AnnotationPage",
		"label":  p.Label,
		"target": p.Target,
		"items":  items,
	}
	if p.PartOf != "" {
		doc["partOf"] = p.PartOf
	}
	if p.Prev != "" {
		doc["prev"] = p.Prev
	}
	if p.Next != "" {
		doc["next"] = p.Next
	}
	if p.Creator != "" {
		doc["creator"] = p.Creator
	}
	return doc
}

// Update runs the promotion state machine for the page. A local page without
// lines stays embedded and costs no external write. The returned embedded
// representation carries the page's possibly-new foreign id; rewriting
// sibling references to that id is the caller's duty and must happen in the
// same logical operation.
func (p *Page) Update(ctx context.Context, store Store) (Page, error) {
	p.Normalize(store.IDBase())

	if p.State != StateForeign {
		if !p.hasContent() {
			return p.Embedded(), nil
		}
		return p.promote(ctx, store)
	}

	current, err := store.Fetch(ctx, p.ID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return p.promote(ctx, store)
		}
		return Page{}, err
	}

	result, err := store.Overwrite(ctx, mergeDocs(current, p.document()))
	if err != nil {
		return Page{}, err
	}
	if id := DocumentID(result); id != "" {
		p.ID = id
	}
	return p.Embedded(), nil
}

func (p *Page) promote(ctx context.Context, store Store) (Page, error) {
	minted := p.ID
	if !IsForeignID(minted, store.IDBase()) {
		minted = MintForeignID(store.IDBase(), p.ID)
	}
	doc := p.document()
	doc["@id"] = minted

	created, err := store.Create(ctx, doc)
	if err != nil {
		return Page{}, err
	}

	if id := DocumentID(created); id != "" {
		p.ID = id
	} else {
		p.ID = minted
	}
	p.State = StateForeign
	return p.Embedded(), nil
}

// Delete removes the page's external document if one exists.
func (p *Page) Delete(ctx context.Context, store Store) error {
	if p.State != StateForeign {
		return nil
	}
	return store.Delete(ctx, p.ID)
}
