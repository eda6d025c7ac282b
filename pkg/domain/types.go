package domain

import (
	"strings"
	"time"
)

// DateLayout is the wire and display format for calendar dates.
const DateLayout = "2006-01-02"

type InstanceStatus string

const (
	StatusAvailable   InstanceStatus = "Available"
	StatusMaintenance InstanceStatus = "Maintenance"
	StatusLoaned      InstanceStatus = "Loaned"
	StatusReserved    InstanceStatus = "Reserved"
)

// InstanceStatuses lists the statuses offered by the copy form, in display order.
var InstanceStatuses = []InstanceStatus{StatusMaintenance, StatusAvailable, StatusLoaned, StatusReserved}

type Author struct {
	ID         string     `json:"id"`
	FirstName  string     `json:"firstName"`
	FamilyName string     `json:"familyName"`
	BornOn     *time.Time `json:"bornOn,omitempty"`
	DiedOn     *time.Time `json:"diedOn,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Name returns "Family, First", or whichever part is present.
func (a Author) Name() string {
	switch {
	case a.FamilyName != "" && a.FirstName != "":
		return a.FamilyName + ", " + a.FirstName
	case a.FamilyName != "":
		return a.FamilyName
	default:
		return a.FirstName
	}
}

// Lifespan renders the born/died dates as "1920-01-02 - 1992-04-06".
func (a Author) Lifespan() string {
	return strings.TrimSpace(FormatDate(a.BornOn) + " - " + FormatDate(a.DiedOn))
}

func (a Author) URL() string {
	return "/catalog/author/" + a.ID
}

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	AuthorID  string    `json:"authorId"`
	Author    *Author   `json:"author,omitempty"`
	Summary   string    `json:"summary"`
	ISBN      string    `json:"isbn"`
	CoverKey  string    `json:"-"`
	Genres    []Genre   `json:"genres"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b Book) URL() string {
	return "/catalog/book/" + b.ID
}

// GenreIDs returns the identifiers of the book's genres.
func (b Book) GenreIDs() []string {
	ids := make([]string, 0, len(b.Genres))
	for _, g := range b.Genres {
		ids = append(ids, g.ID)
	}
	return ids
}

// BookInstance is one lendable copy of a Book.
type BookInstance struct {
	ID        string         `json:"id"`
	BookID    string         `json:"bookId"`
	Book      *Book          `json:"book,omitempty"`
	Imprint   string         `json:"imprint"`
	Status    InstanceStatus `json:"status"`
	DueBack   *time.Time     `json:"dueBack,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (bi BookInstance) URL() string {
	return "/catalog/bookinstance/" + bi.ID
}

func (bi BookInstance) DueBackFormatted() string {
	return FormatDate(bi.DueBack)
}

type Genre struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g Genre) URL() string {
	return "/catalog/genre/" + g.ID
}

// Counts summarises the catalog for the home page.
type Counts struct {
	Books              int64 `json:"books"`
	Instances          int64 `json:"instances"`
	AvailableInstances int64 `json:"availableInstances"`
	Authors            int64 `json:"authors"`
	Genres             int64 `json:"genres"`
}

// FormatDate formats t with DateLayout; nil yields "".
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
