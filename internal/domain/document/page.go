package document

import (
	"errors"
	"fmt"

	"github.com/geocoder89/linguadesk/internal/ids"
)

type PageKind string

const (
	KindText        PageKind = "text"
	KindTranslation PageKind = "translation"
)

// content field names
const (
	FieldText   = "text"
	FieldNative = "native"
	FieldTarget = "target"
)

var (
	ErrInvalidPage       = errors.New("invalid page")
	ErrUnknownPageKind   = fmt.Errorf("%w: unknown page kind", ErrInvalidPage)
	ErrInvalidContentKey = fmt.Errorf("%w: content field not allowed for page kind", ErrInvalidPage)
	ErrDuplicatePageID   = fmt.Errorf("%w: duplicate page id", ErrInvalidPage)
	ErrNoPages           = fmt.Errorf("%w: a document needs at least one page", ErrInvalidPage)
	ErrPageNotFound      = errors.New("page not found")
)

// Content maps a field name to its text. Its keys are fixed by the page kind.
type Content map[string]string

type Page struct {
	ID      string   `json:"id"`
	Kind    PageKind `json:"kind"`
	Title   string   `json:"title"`
	Content Content  `json:"content"`
}

func (k PageKind) Valid() bool {
	return k == KindText || k == KindTranslation
}

// Fields lists the content keys a page of this kind may carry.
func (k PageKind) Fields() []string {
	switch k {
	case KindText:
		return []string{FieldText}
	case KindTranslation:
		return []string{FieldNative, FieldTarget}
	default:
		return nil
	}
}

func (k PageKind) allows(field string) bool {
	for _, f := range k.Fields() {
		if f == field {
			return true
		}
	}

	return false
}

func (k PageKind) defaultTitle() string {
	if k == KindTranslation {
		return "Translation"
	}

	return "Page"
}

func NewPage(kind PageKind) (Page, error) {
	if !kind.Valid() {
		return Page{}, fmt.Errorf("%w: %q", ErrUnknownPageKind, kind)
	}

	return Page{
		ID:      ids.NewID(),
		Kind:    kind,
		Title:   kind.defaultTitle(),
		Content: emptyContent(kind),
	}, nil
}

// DefaultPage is the single page every new document starts with.
func DefaultPage() Page {
	return Page{
		ID:      ids.NewID(),
		Kind:    KindTranslation,
		Title:   "Translation 1",
		Content: emptyContent(KindTranslation),
	}
}

// MergeContent shallow-merges patch into the page content: named fields
// overwrite, every other field keeps its value.
func (p *Page) MergeContent(patch Content) error {
	for field := range patch {
		if !p.Kind.allows(field) {
			return fmt.Errorf("%w: %q on %s page", ErrInvalidContentKey, field, p.Kind)
		}
	}

	if p.Content == nil {
		p.Content = emptyContent(p.Kind)
	}

	for field, text := range patch {
		p.Content[field] = text
	}

	return nil
}

func (p Page) Clone() Page {
	out := p
	out.Content = make(Content, len(p.Content))

	for k, v := range p.Content {
		out.Content[k] = v
	}

	return out
}

// NormalizePages validates an incoming page list and returns a copy with
// missing ids assigned and missing content fields filled with "".
func NormalizePages(pages []Page) ([]Page, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	out := make([]Page, 0, len(pages))
	seen := make(map[string]struct{}, len(pages))

	for i, p := range pages {
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("%w: pages[%d] has kind %q", ErrUnknownPageKind, i, p.Kind)
		}

		np := Page{
			ID:      p.ID,
			Kind:    p.Kind,
			Title:   p.Title,
			Content: emptyContent(p.Kind),
		}

		if np.ID == "" {
			np.ID = ids.NewID()
		}

		if _, dup := seen[np.ID]; dup {
			return nil, fmt.Errorf("%w: pages[%d] id %q", ErrDuplicatePageID, i, np.ID)
		}
		seen[np.ID] = struct{}{}

		for field, text := range p.Content {
			if !p.Kind.allows(field) {
				return nil, fmt.Errorf("%w: pages[%d] field %q on %s page", ErrInvalidContentKey, i, field, p.Kind)
			}
			np.Content[field] = text
		}

		out = append(out, np)
	}

	return out, nil
}

func ClonePages(pages []Page) []Page {
	if pages == nil {
		return nil
	}

	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = p.Clone()
	}

	return out
}

func emptyContent(kind PageKind) Content {
	c := make(Content, 2)
	for _, f := range kind.Fields() {
		c[f] = ""
	}

	return c
}
