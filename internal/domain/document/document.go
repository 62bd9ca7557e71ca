package document

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/linguadesk/internal/ids"
)

const (
	DefaultTitle        = "Untitled"
	DefaultFromLanguage = "fr"
	DefaultToLanguage   = "en"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	Pages        []Page    `json:"pages"`
	FromLanguage string    `json:"fromLanguage"`
	ToLanguage   string    `json:"toLanguage"`
	SharedToken  *string   `json:"sharedToken"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// View is the read-only projection served through share links.
// It must never carry the owner or the token itself.
type View struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Pages        []Page `json:"pages"`
	FromLanguage string `json:"fromLanguage"`
	ToLanguage   string `json:"toLanguage"`
}

type CreateDocumentRequest struct {
	Title string `json:"title" binding:"omitempty,max=200"`
}

// Patch is a partial whole-document update. A nil field means "absent" and keeps
// the stored value; a non-nil field is applied as given, empty strings included.
type Patch struct {
	Title              *string `json:"title,omitempty" binding:"omitempty,max=200"`
	Pages              *[]Page `json:"pages,omitempty"`
	FromLanguage       *string `json:"fromLanguage,omitempty" binding:"omitempty,min=2,max=16"`
	ToLanguage         *string `json:"toLanguage,omitempty" binding:"omitempty,min=2,max=16"`
	GenerateShareToken bool    `json:"generateShareToken,omitempty"`
}

// New builds a fresh document holding one empty translation page.
func New(ownerID, title string, now time.Time) Document {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	return Document{
		ID:           ids.NewID(),
		OwnerID:      ownerID,
		Title:        title,
		Pages:        []Page{DefaultPage()},
		FromLanguage: DefaultFromLanguage,
		ToLanguage:   DefaultToLanguage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply merges p into d. mintToken is only called when a share token is
// requested and none exists yet.
func (d *Document) Apply(p Patch, mintToken func() string, now time.Time) error {
	var pages []Page

	if p.Pages != nil {
		normalized, err := NormalizePages(*p.Pages)
		if err != nil {
			return err
		}
		pages = normalized
	}

	if p.Title != nil {
		d.Title = *p.Title
	}

	if p.Pages != nil {
		d.Pages = pages
	}

	if p.FromLanguage != nil {
		d.FromLanguage = *p.FromLanguage
	}

	if p.ToLanguage != nil {
		d.ToLanguage = *p.ToLanguage
	}

	if p.GenerateShareToken && !d.IsShared() {
		token := mintToken()
		d.SharedToken = &token
	}

	d.UpdatedAt = now

	return nil
}

// AddPage appends an empty page of the given kind and returns it.
func (d *Document) AddPage(kind PageKind) (Page, error) {
	p, err := NewPage(kind)
	if err != nil {
		return Page{}, err
	}

	d.Pages = append(d.Pages, p)

	return p, nil
}

// PageByID returns a pointer into d.Pages so callers can patch in place.
func (d *Document) PageByID(id string) (*Page, bool) {
	for i := range d.Pages {
		if d.Pages[i].ID == id {
			return &d.Pages[i], true
		}
	}

	return nil, false
}

func (d Document) IsShared() bool {
	return d.SharedToken != nil && *d.SharedToken != ""
}

func (d Document) View() View {
	return View{
		ID:           d.ID,
		Title:        d.Title,
		Pages:        ClonePages(d.Pages),
		FromLanguage: d.FromLanguage,
		ToLanguage:   d.ToLanguage,
	}
}

// Clone deep-copies the document so stored state is never aliased by callers.
func (d Document) Clone() Document {
	out := d
	out.Pages = ClonePages(d.Pages)

	if d.SharedToken != nil {
		token := *d.SharedToken
		out.SharedToken = &token
	}

	return out
}
