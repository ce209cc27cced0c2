package project

import (
	"context"
	"strings"
	"testing"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/transcription"
)

func TestCreateLinePromotesWholeChain(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()
	layerID := p.Layers[0].ID
	pageID := p.Layers[0].Pages[0].ID

	updated, err := f.svc.CreateLine(ctx, p.ID, layerID, pageID,
		transcription.Line{Body: "In principio"}, "u1")
	if err != nil {
		t.Fatalf("CreateLine: %v", err)
	}

	layer := updated.Layers[0]
	if !strings.HasPrefix(layer.ID, idBase) {
		t.Errorf("layer id %q not promoted", layer.ID)
	}
	page := layer.Pages[0]
	if !strings.HasPrefix(page.ID, idBase) {
		t.Errorf("page id %q not promoted", page.ID)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}
	line := page.Items[0]
	if !strings.HasPrefix(line.ID, idBase) {
		t.Errorf("line id %q not promoted", line.ID)
	}
	// embedded representation must not duplicate the annotation body
	if line.Body != nil {
		t.Errorf("embedded line still carries body %v", line.Body)
	}
	stored, err := f.store.Fetch(ctx, line.ID)
	if err != nil {
		t.Fatalf("line document missing from store: %v", err)
	}
	if stored["body"] != "In principio" {
		t.Errorf("stored body = %v", stored["body"])
	}
	if stored["creator"] != "https://api.example.org/agent/u1" {
		t.Errorf("stored creator = %v", stored["creator"])
	}

	// neighbour links rewritten to the foreign page id
	if layer.Pages[1].Prev != page.ID {
		t.Errorf("neighbour prev = %q, want %q", layer.Pages[1].Prev, page.ID)
	}
	// every page now points at the promoted layer
	for i, pg := range layer.Pages {
		if pg.PartOf != layer.ID {
			t.Errorf("page %d partOf = %q, want %q", i, pg.PartOf, layer.ID)
		}
	}
	// the stale local ids survive nowhere in the aggregate
	for _, pg := range layer.Pages {
		for _, ref := range []string{pg.ID, pg.Prev, pg.Next, pg.PartOf} {
			if strings.Contains(ref, "/page/p1") || strings.Contains(ref, "/layer/l1") {
				t.Errorf("stale local id survived: %q", ref)
			}
		}
	}

	if f.repo.updates == 0 {
		t.Errorf("project aggregate was never persisted")
	}
}

func TestUpdateLineTextOverwritesPromotedLine(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()

	updated, err := f.svc.CreateLine(ctx, p.ID, p.Layers[0].ID, p.Layers[0].Pages[0].ID,
		transcription.Line{Body: "first draft"}, "u1")
	if err != nil {
		t.Fatalf("CreateLine: %v", err)
	}
	layer := updated.Layers[0]
	lineID := layer.Pages[0].Items[0].ID
	createsBefore := f.store.creates

	updated, err = f.svc.UpdateLineText(ctx, p.ID, layer.ID, layer.Pages[0].ID, lineID, "second draft", "u2")
	if err != nil {
		t.Fatalf("UpdateLineText: %v", err)
	}

	if f.store.creates != createsBefore {
		t.Errorf("promoted line must not be recreated")
	}
	stored, _ := f.store.Fetch(ctx, lineID)
	if stored["body"] != "second draft" {
		t.Errorf("stored body = %v", stored["body"])
	}
	if stored["creator"] != "https://api.example.org/agent/u2" {
		t.Errorf("edit not attributed: %v", stored["creator"])
	}
	if updated.Layers[0].Pages[0].Items[0].ID != lineID {
		t.Errorf("foreign id changed on overwrite")
	}
}

func TestUpdateLineTextKeepsNonTextualBodyEntries(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()

	mixed := []any{
		map[string]any{"type": "Image", "source": "https://iiif.example.org/detail.png"},
		map[string]any{"type": "TextualBody", "value": "draft"},
	}
	updated, err := f.svc.CreateLine(ctx, p.ID, p.Layers[0].ID, p.Layers[0].Pages[0].ID,
		transcription.Line{Body: mixed}, "u1")
	if err != nil {
		t.Fatalf("CreateLine: %v", err)
	}
	layer := updated.Layers[0]
	lineID := layer.Pages[0].Items[0].ID

	if _, err := f.svc.UpdateLineText(ctx, p.ID, layer.ID, layer.Pages[0].ID, lineID, "final", "u1"); err != nil {
		t.Fatalf("UpdateLineText: %v", err)
	}

	stored, _ := f.store.Fetch(ctx, lineID)
	list, ok := stored["body"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("stored body = %v, want the two-entry list", stored["body"])
	}
	img, _ := list[0].(map[string]any)
	if img["type"] != "Image" {
		t.Errorf("non-textual entry lost: %v", list[0])
	}
	text, _ := list[1].(map[string]any)
	if text["value"] != "final" {
		t.Errorf("textual entry = %v", list[1])
	}
}

func TestUpdateLineTextRejectsAmbiguousStoredBody(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()

	updated, err := f.svc.CreateLine(ctx, p.ID, p.Layers[0].ID, p.Layers[0].Pages[0].ID,
		transcription.Line{Body: []any{
			map[string]any{"type": "TextualBody", "value": "latin"},
			map[string]any{"type": "TextualBody", "value": "english"},
		}}, "u1")
	if err != nil {
		t.Fatalf("CreateLine: %v", err)
	}
	layer := updated.Layers[0]
	lineID := layer.Pages[0].Items[0].ID
	writes := f.store.overwritesBy[lineID]

	_, err = f.svc.UpdateLineText(ctx, p.ID, layer.ID, layer.Pages[0].ID, lineID, "which one", "u1")
	if !apperror.IsKind(err, apperror.KindBadRequest) {
		t.Fatalf("err = %v, want BadRequest", err)
	}
	if f.store.overwritesBy[lineID] != writes {
		t.Errorf("rejected edit still overwrote the line document")
	}
}

func TestLineOperationsResolveLayerFromPage(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()
	pageID := p.Layers[0].Pages[0].ID

	// an empty layer id resolves to the layer holding the page
	updated, err := f.svc.CreateLine(ctx, p.ID, "", pageID, transcription.Line{Body: "text"}, "u1")
	if err != nil {
		t.Fatalf("CreateLine without layer id: %v", err)
	}
	layer := updated.Layers[0]
	if len(layer.Pages[0].Items) != 1 {
		t.Fatalf("items = %d, want 1", len(layer.Pages[0].Items))
	}
	lineID := layer.Pages[0].Items[0].ID

	if _, err := f.svc.UpdateLineText(ctx, p.ID, "", layer.Pages[0].ID, lineID, "more", "u1"); err != nil {
		t.Fatalf("UpdateLineText without layer id: %v", err)
	}

	_, err = f.svc.CreateLine(ctx, p.ID, "", "https://api.example.org/page/nope",
		transcription.Line{Body: "x"}, "u1")
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("unknown page: err = %v, want NotFound", err)
	}
}

func TestUpdateLineBoundsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()

	updated, err := f.svc.CreateLine(ctx, p.ID, p.Layers[0].ID, p.Layers[0].Pages[0].ID,
		transcription.Line{Body: "text", Target: "https://iiif.example.org/canvas/1#xywh=0,0,10,10"}, "u1")
	if err != nil {
		t.Fatalf("CreateLine: %v", err)
	}
	layer := updated.Layers[0]
	lineID := layer.Pages[0].Items[0].ID

	bounds := transcription.Bounds{X: 5, Y: 5, W: 20, H: 10}
	if _, err := f.svc.UpdateLineBounds(ctx, p.ID, layer.ID, layer.Pages[0].ID, lineID, bounds, "u1"); err != nil {
		t.Fatalf("UpdateLineBounds: %v", err)
	}
	writes := f.store.overwritesBy[lineID]

	if _, err := f.svc.UpdateLineBounds(ctx, p.ID, layer.ID, layer.Pages[0].ID, lineID, bounds, "u1"); err != nil {
		t.Fatalf("UpdateLineBounds: %v", err)
	}
	if f.store.overwritesBy[lineID] != writes {
		t.Errorf("identical bounds performed an external write on the line")
	}

	stored, _ := f.store.Fetch(ctx, lineID)
	if target, _ := stored["target"].(string); !strings.HasSuffix(target, "#xywh=5,5,20,10") {
		t.Errorf("stored target = %q", target)
	}
}

func TestReorderPagesAttributesChangedLinks(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()
	layerID := p.Layers[0].ID
	ids := []string{p.Layers[0].Pages[0].ID, p.Layers[0].Pages[1].ID, p.Layers[0].Pages[2].ID}

	updated, err := f.svc.ReorderPages(ctx, p.ID, layerID, []string{ids[2], ids[1], ids[0]}, "u2")
	if err != nil {
		t.Fatalf("ReorderPages: %v", err)
	}

	layer := updated.Layers[0]
	if layer.Pages[0].ID != ids[2] || layer.Pages[2].ID != ids[0] {
		t.Errorf("order not applied: %v", layer.PageIDs())
	}
	if layer.Pages[0].Prev != "" || layer.Pages[0].Next != ids[1] {
		t.Errorf("page 0 links: prev=%q next=%q", layer.Pages[0].Prev, layer.Pages[0].Next)
	}
	agent := "https://api.example.org/agent/u2"
	for i, pg := range layer.Pages {
		if pg.Creator != agent {
			t.Errorf("page %d link change not attributed: creator=%q", i, pg.Creator)
		}
	}
}

func TestReorderPagesRejectsBadPermutation(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()
	layerID := p.Layers[0].ID
	ids := []string{p.Layers[0].Pages[0].ID, p.Layers[0].Pages[1].ID, p.Layers[0].Pages[2].ID}

	_, err := f.svc.ReorderPages(ctx, p.ID, layerID, ids[:2], "u1")
	if !apperror.IsKind(err, apperror.KindBadRequest) {
		t.Errorf("short list: err = %v, want BadRequest", err)
	}

	_, err = f.svc.ReorderPages(ctx, p.ID, layerID, []string{ids[0], ids[1], "https://api.example.org/page/other"}, "u1")
	if !apperror.IsKind(err, apperror.KindBadRequest) {
		t.Errorf("foreign page: err = %v, want BadRequest", err)
	}

	// unchanged order attributes nothing
	updated, err := f.svc.ReorderPages(ctx, p.ID, layerID, ids, "u2")
	if err != nil {
		t.Fatalf("ReorderPages noop: %v", err)
	}
	for i, pg := range updated.Layers[0].Pages {
		if pg.Creator != "" {
			t.Errorf("page %d attributed on noop reorder: %q", i, pg.Creator)
		}
	}
}

func TestDeleteLineRemovesDocumentAndReference(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()

	updated, err := f.svc.CreateLine(ctx, p.ID, p.Layers[0].ID, p.Layers[0].Pages[0].ID,
		transcription.Line{Body: "text"}, "u1")
	if err != nil {
		t.Fatalf("CreateLine: %v", err)
	}
	layer := updated.Layers[0]
	lineID := layer.Pages[0].Items[0].ID

	updated, err = f.svc.DeleteLine(ctx, p.ID, layer.ID, layer.Pages[0].ID, lineID)
	if err != nil {
		t.Fatalf("DeleteLine: %v", err)
	}

	if len(updated.Layers[0].Pages[0].Items) != 0 {
		t.Errorf("line reference still embedded")
	}
	if _, err := f.store.Fetch(ctx, lineID); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("line document still in store: %v", err)
	}
}

func TestPromotedIDNeverRevertsAcrossOperations(t *testing.T) {
	f := newFixture(t)
	p := f.seedProject(t, "u1")
	ctx := context.Background()

	updated, err := f.svc.CreateLine(ctx, p.ID, p.Layers[0].ID, p.Layers[0].Pages[0].ID,
		transcription.Line{Body: "text"}, "u1")
	if err != nil {
		t.Fatalf("CreateLine: %v", err)
	}
	layer := updated.Layers[0]
	pageID := layer.Pages[0].ID

	// a later reorder keeps the foreign page id
	order := []string{layer.Pages[1].ID, layer.Pages[0].ID, layer.Pages[2].ID}
	updated, err = f.svc.ReorderPages(ctx, p.ID, layer.ID, order, "u1")
	if err != nil {
		t.Fatalf("ReorderPages: %v", err)
	}
	if updated.Layers[0].Pages[1].ID != pageID {
		t.Errorf("foreign page id changed: %q", updated.Layers[0].Pages[1].ID)
	}
	if !strings.HasPrefix(updated.Layers[0].Pages[1].ID, idBase) {
		t.Errorf("page id reverted to local namespace")
	}
}
