package app

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"locallibrary/pkg/domain"
)

// FieldError is one failed rule on a submitted form field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors lists field failures in form order. Handlers re-render the
// form when they see it instead of failing the request.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Has reports whether field failed any rule.
func (v ValidationErrors) Has(field string) bool {
	return lo.ContainsBy(v, func(fe FieldError) bool { return fe.Field == field })
}

// AuthorForm is the sanitized author submission.
type AuthorForm struct {
	FirstName   string `form:"first_name" validate:"required,alphanum"`
	FamilyName  string `form:"family_name" validate:"required,alphanum"`
	DateOfBirth string `form:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	DateOfDeath string `form:"date_of_death" validate:"omitempty,datetime=2006-01-02"`
}

func AuthorFormFromValues(v url.Values) AuthorForm {
	return AuthorForm{
		FirstName:   sanitizeText(v.Get("first_name")),
		FamilyName:  sanitizeText(v.Get("family_name")),
		DateOfBirth: sanitizeText(v.Get("date_of_birth")),
		DateOfDeath: sanitizeText(v.Get("date_of_death")),
	}
}

// BookForm is the sanitized book submission. Genres holds genre ids.
type BookForm struct {
	Title   string   `form:"title" validate:"required"`
	Author  string   `form:"author" validate:"required"`
	Summary string   `form:"summary" validate:"required"`
	ISBN    string   `form:"isbn" validate:"required"`
	Genres  []string `form:"genre"`
}

// BookFormFromValues reads a book submission. The genre field may be absent,
// a single value, or repeated; all three become a slice of ids.
func BookFormFromValues(v url.Values) BookForm {
	return BookForm{
		Title:   sanitizeText(v.Get("title")),
		Author:  sanitizeText(v.Get("author")),
		Summary: sanitizeText(v.Get("summary")),
		ISBN:    sanitizeText(v.Get("isbn")),
		Genres:  normalizeGenreIDs(v["genre"]),
	}
}

func bookFormFromBook(b domain.Book) BookForm {
	return BookForm{
		Title:   b.Title,
		Author:  b.AuthorID,
		Summary: b.Summary,
		ISBN:    b.ISBN,
		Genres:  b.GenreIDs(),
	}
}

// InstanceForm is the sanitized book copy submission. Status accepts any value.
type InstanceForm struct {
	Book    string `form:"book" validate:"required"`
	Imprint string `form:"imprint" validate:"required"`
	Status  string `form:"status"`
	DueBack string `form:"due_back" validate:"omitempty,datetime=2006-01-02"`
}

func InstanceFormFromValues(v url.Values) InstanceForm {
	return InstanceForm{
		Book:    sanitizeText(v.Get("book")),
		Imprint: sanitizeText(v.Get("imprint")),
		Status:  sanitizeText(v.Get("status")),
		DueBack: sanitizeText(v.Get("due_back")),
	}
}

// GenreForm is the sanitized genre submission.
type GenreForm struct {
	Name string `form:"name" validate:"required"`
}

func GenreFormFromValues(v url.Values) GenreForm {
	return GenreForm{Name: sanitizeText(v.Get("name"))}
}

var fieldMessages = map[string]string{
	"first_name.required":    "First name must be specified.",
	"first_name.alphanum":    "First name has non-alphanumeric characters.",
	"family_name.required":   "Family name must be specified.",
	"family_name.alphanum":   "Family name has non-alphanumeric characters.",
	"date_of_birth.datetime": "Invalid date of birth",
	"date_of_death.datetime": "Invalid date of death",
	"title.required":         "Title must not be empty.",
	"author.required":        "Author must not be empty.",
	"summary.required":       "Summary must not be empty.",
	"isbn.required":          "ISBN must not be empty.",
	"book.required":          "Book must be specified",
	"imprint.required":       "Imprint must be specified",
	"due_back.datetime":      "Invalid date",
	"name.required":          "Genre name required",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs the declared rules on form and converts failures to ValidationErrors.
func (a *App) check(form any) error {
	err := a.validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid " + strings.ReplaceAll(fe.Field(), "_", " ")
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

// sanitizeText trims s and drops control characters other than line breaks
// and tabs. Markup is stored as typed; templates escape it on output.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func normalizeGenreIDs(raw []string) []string {
	ids := lo.FilterMap(raw, func(id string, _ int) (string, bool) {
		id = sanitizeText(id)
		return id, id != ""
	})
	return lo.Uniq(ids)
}

// parseDate reads an already validated YYYY-MM-DD value; empty yields nil.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
