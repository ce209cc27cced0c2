package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
)

// Line is one annotated region of a canvas holding transcribed text. It
// starts embedded in its page and is promoted to an external annotation on
// the first save of real content.
type Line struct {
	ID         string `json:"id" bson:"id"`
	Type       string `json:"type,omitempty" bson:"type,omitempty"`
	Label      string `json:"label,omitempty" bson:"label,omitempty"`
	Body       any    `json:"body,omitempty" bson:"body,omitempty"`
	Target     string `json:"target" bson:"target"`
	Motivation string `json:"motivation,omitempty" bson:"motivation,omitempty"`
	Creator    string `json:"creator,omitempty" bson:"creator,omitempty"`

	State PersistState `json:"-" bson:"-"`
}

// Bounds is the xywh fragment selector on a line's target.
type Bounds struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Normalize fills defaults and derives the persistence state from the id.
func (l *Line) Normalize(idBase string) {
	if l.Type == "" {
		l.Type = "Annotation"
	}
	if l.Motivation == "" {
		l.Motivation = "transcribing"
	}
	if IsForeignID(l.ID, idBase) {
		l.State = StateForeign
	} else if l.State == "" {
		l.State = StateLocal
	}
}

// Embedded returns the reference stored inside the parent page. A foreign
// line's body lives in the external store and is not duplicated here.
func (l Line) Embedded() Line {
	out := l
	if l.State == StateForeign {
		out.Body = nil
	}
	return out
}

func (l *Line) hasContent() bool {
	switch b := l.Body.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(b) != ""
	case map[string]any:
		return len(b) > 0
	case []any:
		return len(b) > 0
	default:
		return true
	}
}

func (l *Line) document() map[string]any {
	doc := map[string]any{
		"@id":        l.ID,
		"type":       l.Type,
		"motivation": l.Motivation,
		"target":     l.Target,
	}
	if l.Body != nil {
		doc["body"] = l.Body
	}
	if l.Label != "" {
		doc["label"] = l.Label
	}
	if l.Creator != "" {
		doc["creator"] = l.Creator
	}
	return doc
}

// Update runs the promotion state machine: a local line with content is
// created in the external store under a freshly minted foreign id; a foreign
// line is fetched, merged and overwritten. A 409 from the overwrite surfaces
// as a VersionConflict carrying the server's copy; no retry happens here.
func (l *Line) Update(ctx context.Context, store Store) (Line, error) {
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
			// the external copy vanished; recreate it
			return l.promote(ctx, store)
		}
		return Line{}, err
	}

	result, err := store.Overwrite(ctx, mergeDocs(current, l.document()))
	if err != nil {
		return Line{}, err
	}
	if id := DocumentID(result); id != "" {
		l.ID = id
	}
	return l.Embedded(), nil
}

func (l *Line) promote(ctx context.Context, store Store) (Line, error) {
	minted := l.ID
	if !IsForeignID(minted, store.IDBase()) {
		minted = MintForeignID(store.IDBase(), l.ID)
	}
	doc := l.document()
	doc["@id"] = minted

	created, err := store.Create(ctx, doc)
	if err != nil {
		return Line{}, err
	}

	if id := DocumentID(created); id != "" {
		l.ID = id
	} else {
		l.ID = minted
	}
	l.State = StateForeign
	return l.Embedded(), nil
}

// UpdateText replaces the single textual body of the line and saves it.
// A body with zero or more than one text-bearing entry is an ambiguous
// target and rejected. A promoted line's embedded copy carries no body, so
// the current one is read from the store before the edit; a non-textual
// sibling entry in a mixed body survives the rewrite.
func (l *Line) UpdateText(ctx context.Context, store Store, text string) (Line, error) {
	l.Normalize(store.IDBase())

	body := l.Body
	if l.State == StateForeign && body == nil {
		current, err := store.Fetch(ctx, l.ID)
		if err != nil {
			// a vanished external copy is recreated by Update below
			if !apperror.IsKind(err, apperror.KindNotFound) {
				return Line{}, err
			}
		} else {
			body = current["body"]
		}
	}

	body, err := setBodyText(body, text)
	if err != nil {
		return Line{}, err
	}
	l.Body = body
	return l.Update(ctx, store)
}

// UpdateBounds rewrites the xywh fragment of the target. Equal bounds are a
// no-op: the line is returned unchanged and nothing is written externally.
func (l *Line) UpdateBounds(ctx context.Context, store Store, b Bounds) (Line, error) {
	base, current, ok := splitBounds(l.Target)
	if ok && current == b {
		return l.Embedded(), nil
	}
	l.Target = fmt.Sprintf("%s#xywh=%d,%d,%d,%d", base, b.X, b.Y, b.W, b.H)
	return l.Update(ctx, store)
}

// Delete removes the line's external document if one exists.
func (l *Line) Delete(ctx context.Context, store Store) error {
	if l.State != StateForeign {
		return nil
	}
	return store.Delete(ctx, l.ID)
}

// setBodyText locates the one textual entry of a body and replaces its text.
// A plain string body stays a plain string; a textual-body object keeps its
// other keys; in a mixed list exactly one entry must be textual.
func setBodyText(body any, text string) (any, error) {
	switch b := body.(type) {
	case nil, string:
		return text, nil
	case map[string]any:
		if !isTextualBody(b) {
			return nil, apperror.BadRequest("line body carries no textual entry to update")
		}
		out := make(map[string]any, len(b))
		for k, v := range b {
			out[k] = v
		}
		out["value"] = text
		return out, nil
	case []any:
		idx := -1
		for i, entry := range b {
			if isTextualEntry(entry) {
				if idx >= 0 {
					return nil, apperror.BadRequest("line body carries more than one textual entry")
				}
				idx = i
			}
		}
		if idx < 0 {
			return nil, apperror.BadRequest("line body carries no textual entry to update")
		}
		out := make([]any, len(b))
		copy(out, b)
		replaced, err := setBodyText(out[idx], text)
		if err != nil {
			return nil, err
		}
		out[idx] = replaced
		return out, nil
	default:
		return nil, apperror.BadRequest("line body has an unsupported shape")
	}
}

func isTextualEntry(entry any) bool {
	switch e := entry.(type) {
	case string:
		return true
	case map[string]any:
		return isTextualBody(e)
	default:
		return false
	}
}

func isTextualBody(body map[string]any) bool {
	if _, ok := body["value"]; ok {
		return true
	}
	t, _ := body["type"].(string)
	return t == "TextualBody"
}

// splitBounds cuts the xywh fragment off a target URI.
func splitBounds(target string) (base string, b Bounds, ok bool) {
	base, frag, found := strings.Cut(target, "#xywh=")
	if !found {
		return target, Bounds{}, false
	}
	if n, err := fmt.Sscanf(frag, "%d,%d,%d,%d", &b.X, &b.Y, &b.W, &b.H); err != nil || n != 4 {
		return base, Bounds{}, false
	}
	return base, b, true
}
