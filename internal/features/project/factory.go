package project

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/transcription"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectFactory builds the initial layer/page tree of a project from a
// IIIF Presentation 3 manifest: one default layer holding one page per
// canvas, linked in canvas order.
type ProjectFactory struct {
	servicesURL string
	http        *http.Client
}

func NewProjectFactory(cfg *config.Config) *ProjectFactory {
	return &ProjectFactory{
		servicesURL: strings.TrimSuffix(cfg.ServicesURL, "/"),
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// NewProjectFactoryWithHTTP injects the HTTP client, for tests.
func NewProjectFactoryWithHTTP(servicesURL string, client *http.Client) *ProjectFactory {
	return &ProjectFactory{servicesURL: strings.TrimSuffix(servicesURL, "/"), http: client}
}

type manifestDoc struct {
	ID      string         `json:"id"`
	AtID    string         `json:"@id"`
	Type    string         `json:"type"`
	Label   map[string]any `json:"label"`
	Items   []canvasDoc    `json:"items"`
	Metadata []struct {
		Label map[string]any `json:"label"`
		Value map[string]any `json:"value"`
	} `json:"metadata"`
}

type canvasDoc struct {
	ID    string         `json:"id"`
	AtID  string         `json:"@id"`
	Type  string         `json:"type"`
	Label map[string]any `json:"label"`
}

// FromManifest fetches the manifest and assembles an unsaved project. The
// caller attributes the creator and attaches the access group before
// persisting.
func (f *ProjectFactory) FromManifest(ctx context.Context, manifestURL string) (*Project, error) {
	if !isAbsoluteURI(manifestURL) {
		return nil, apperror.BadRequest("manifest %q is not an absolute URI", manifestURL)
	}

	manifest, err := f.fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	if len(manifest.Items) == 0 {
		return nil, apperror.BadRequest("manifest %s has no canvases", manifestURL)
	}

	label := languageValue(manifest.Label)
	if label == "" {
		label = "Untitled project"
	}

	layer := transcription.Layer{
		ID:    f.localID("layer", label),
		Label: label,
		State: transcription.StateLocal,
		Pages: make([]transcription.Page, 0, len(manifest.Items)),
	}
	for i, canvas := range manifest.Items {
		target := canvas.ID
		if target == "" {
			target = canvas.AtID
		}
		if target == "" {
			return nil, apperror.BadRequest("canvas %d in manifest %s has no id", i, manifestURL)
		}
		pageLabel := languageValue(canvas.Label)
		if pageLabel == "" {
			pageLabel = fmt.Sprintf("Page %d", i+1)
		}
		layer.Pages = append(layer.Pages, transcription.Page{
			ID:     f.localID("page", pageLabel),
			Label:  pageLabel,
			Target: target,
			PartOf: layer.ID,
			State:  transcription.StateLocal,
		})
	}
	linkPages(layer.Pages)

	project := &Project{
		Label:    label,
		Manifest: manifestURL,
		Layers:   []transcription.Layer{layer},
	}
	for _, m := range manifest.Metadata {
		project.Metadata = append(project.Metadata, Metadata{
			Label: languageValue(m.Label),
			Value: languageValue(m.Value),
		})
	}
	return project, nil
}

func (f *ProjectFactory) fetch(ctx context.Context, manifestURL string) (*manifestDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, apperror.BadRequest("invalid manifest url: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, apperror.ExternalStore(err, "fetching manifest %s", manifestURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperror.NotFound("manifest %s not found", manifestURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.ExternalStore(nil, "fetching manifest %s: status %d", manifestURL, resp.StatusCode)
	}

	var manifest manifestDoc
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, apperror.BadRequest("manifest %s is not valid JSON: %v", manifestURL, err)
	}
	return &manifest, nil
}

func (f *ProjectFactory) localID(kind, label string) string {
	id := f.servicesURL + "/" + kind + "/" + primitive.NewObjectID().Hex()
	if slug := utils.Slugify(label); slug != "" {
		id += "-" + slug
	}
	return id
}

// languageValue pulls the first value out of a IIIF language map.
func languageValue(m map[string]any) string {
	for _, lang := range []string{"en", "none"} {
		if s := firstString(m[lang]); s != "" {
			return s
		}
	}
	for _, v := range m {
		if s := firstString(v); s != "" {
			return s
		}
	}
	return ""
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, entry := range t {
			if s, ok := entry.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func linkPages(pages []transcription.Page) {
	for i := range pages {
		if i > 0 {
			pages[i].Prev = pages[i-1].ID
		}
		if i < len(pages)-1 {
			pages[i].Next = pages[i+1].ID
		}
	}
}
