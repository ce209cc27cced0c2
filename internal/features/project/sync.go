package project

import (
	"context"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/transcription"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cross-entity orchestration. Promoting a page hands it a new foreign id;
// every reference to the old id inside the layer (the pages entry, the
// neighbours' prev/next links) is rewritten in the same logical operation,
// and the enclosing layer and project are persisted afterward.

// updateLayerAndProject pushes the layer through its promotion state
// machine, stores the embedded representation back into the aggregate and
// flushes the project.
func (s *ProjectServiceImpl) updateLayerAndProject(ctx context.Context, p *Project, layer *transcription.Layer) error {
	embedded, err := layer.Update(ctx, s.store)
	if err != nil {
		return err
	}
	*layer = embedded
	return s.persist(ctx, p)
}

// updatePageAndProject promotes or overwrites one page, rewrites sibling
// references if the id changed, then syncs the enclosing layer.
func (s *ProjectServiceImpl) updatePageAndProject(ctx context.Context, p *Project, layer *transcription.Layer, page *transcription.Page) error {
	oldID := page.ID
	embedded, err := page.Update(ctx, s.store)
	if err != nil {
		return err
	}
	*page = embedded
	if embedded.ID != oldID {
		layer.ReplacePageID(oldID, embedded.ID)
	}
	return s.updateLayerAndProject(ctx, p, layer)
}

// ReorderPages applies a new page sequence to a layer. Pages whose prev or
// next link changed count as content changes: they are re-attributed to the
// caller and rewritten in the annotation store if already promoted.
func (s *ProjectServiceImpl) ReorderPages(ctx context.Context, projectID primitive.ObjectID, layerID string, order []string, userID string) (*Project, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	layer, err := project.FindLayer(layerID)
	if err != nil {
		return nil, err
	}

	changed, err := layer.RebuildPageOrder(order)
	if err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		agent, err := s.agents.Resolve(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, id := range changed {
			page, err := layer.FindPage(id)
			if err != nil {
				return nil, err
			}
			page.Creator = agent
			oldID := page.ID
			embedded, err := page.Update(ctx, s.store)
			if err != nil {
				return nil, err
			}
			*page = embedded
			if embedded.ID != oldID {
				layer.ReplacePageID(oldID, embedded.ID)
			}
		}
	}

	if err := s.updateLayerAndProject(ctx, project, layer); err != nil {
		return nil, err
	}
	return project, nil
}

// CreateLine appends a new line to a page and saves it. A line carrying
// transcription content is promoted on this first save.
func (s *ProjectServiceImpl) CreateLine(ctx context.Context, projectID primitive.ObjectID, layerID, pageID string, line transcription.Line, userID string) (*Project, error) {
	project, layer, page, err := s.locatePage(ctx, projectID, layerID, pageID)
	if err != nil {
		return nil, err
	}

	agent, err := s.agents.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if line.ID == "" {
		line.ID = s.mintLocalID("line")
	}
	if line.Target == "" {
		line.Target = page.Target
	}
	line.Creator = agent
	line.Normalize(s.store.IDBase())

	page.Items = append(page.Items, line)
	target := &page.Items[len(page.Items)-1]
	embedded, err := target.Update(ctx, s.store)
	if err != nil {
		return nil, err
	}
	*target = embedded

	if err := s.updatePageAndProject(ctx, project, layer, page); err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateLineText replaces the single textual body of a line.
func (s *ProjectServiceImpl) UpdateLineText(ctx context.Context, projectID primitive.ObjectID, layerID, pageID, lineID, text, userID string) (*Project, error) {
	return s.mutateLine(ctx, projectID, layerID, pageID, lineID, userID,
		func(line *transcription.Line) (transcription.Line, error) {
			return line.UpdateText(ctx, s.store, text)
		})
}

// UpdateLineBounds rewrites the xywh fragment of the line's target. Equal
// bounds are a no-op and perform no external write.
func (s *ProjectServiceImpl) UpdateLineBounds(ctx context.Context, projectID primitive.ObjectID, layerID, pageID, lineID string, bounds transcription.Bounds, userID string) (*Project, error) {
	return s.mutateLine(ctx, projectID, layerID, pageID, lineID, userID,
		func(line *transcription.Line) (transcription.Line, error) {
			return line.UpdateBounds(ctx, s.store, bounds)
		})
}

// DeleteLine removes a line from its page and from the annotation store.
func (s *ProjectServiceImpl) DeleteLine(ctx context.Context, projectID primitive.ObjectID, layerID, pageID, lineID string) (*Project, error) {
	project, layer, page, err := s.locatePage(ctx, projectID, layerID, pageID)
	if err != nil {
		return nil, err
	}
	line, err := page.FindLine(lineID)
	if err != nil {
		return nil, err
	}

	if err := line.Delete(ctx, s.store); err != nil {
		return nil, err
	}
	if err := page.RemoveLine(lineID); err != nil {
		return nil, err
	}
	if err := s.updatePageAndProject(ctx, project, layer, page); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectServiceImpl) mutateLine(ctx context.Context, projectID primitive.ObjectID, layerID, pageID, lineID, userID string, apply func(*transcription.Line) (transcription.Line, error)) (*Project, error) {
	project, layer, page, err := s.locatePage(ctx, projectID, layerID, pageID)
	if err != nil {
		return nil, err
	}
	line, err := page.FindLine(lineID)
	if err != nil {
		return nil, err
	}

	agent, err := s.agents.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	line.Creator = agent

	embedded, err := apply(line)
	if err != nil {
		return nil, err
	}
	*line = embedded

	if err := s.updatePageAndProject(ctx, project, layer, page); err != nil {
		return nil, err
	}
	return project, nil
}

// locatePage resolves a page inside the project. An empty layer id means
// "whichever layer holds the page" so line routes need not name it.
func (s *ProjectServiceImpl) locatePage(ctx context.Context, projectID primitive.ObjectID, layerID, pageID string) (*Project, *transcription.Layer, *transcription.Page, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, nil, nil, err
	}
	var layer *transcription.Layer
	if layerID == "" {
		layer, err = project.LayerForPage(pageID)
	} else {
		layer, err = project.FindLayer(layerID)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	page, err := layer.FindPage(pageID)
	if err != nil {
		return nil, nil, nil, err
	}
	return project, layer, page, nil
}
