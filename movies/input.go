package movies

import (
	"io"
	"strings"
	"time"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/internal/utils"
	"github.com/jrsteele09/go-moviezone-client/users"
)

// Poster is an image uploaded with a movie.
type Poster struct {
	Filename string
	Content  io.Reader
}

// MovieInput is the form sent by Create and Update. Nil fields are left out,
// which on Update leaves them unchanged.
type MovieInput struct {
	Title       *string
	Description *string
	ReleaseDate *string // DateLayout
	Poster      *Poster
}

// NewMovieInput returns an input with every text field set, as Create needs.
func NewMovieInput(title, description string, released time.Time) MovieInput {
	return MovieInput{
		Title:       utils.Ptr(title),
		Description: utils.Ptr(description),
		ReleaseDate: utils.Ptr(released.Format(DateLayout)),
	}
}

func (in MovieInput) WithTitle(title string) MovieInput {
	in.Title = utils.Ptr(title)
	return in
}

func (in MovieInput) WithDescription(description string) MovieInput {
	in.Description = utils.Ptr(description)
	return in
}

func (in MovieInput) WithPoster(filename string, content io.Reader) MovieInput {
	in.Poster = &Poster{Filename: filename, Content: content}
	return in
}

func (in MovieInput) validateCreate() error {
	errs := users.ValidationErrors{}
	if strings.TrimSpace(utils.Value(in.Title)) == "" {
		errs.Add("title", "This field is required.")
	}
	if strings.TrimSpace(utils.Value(in.Description)) == "" {
		errs.Add("description", "This field is required.")
	}
	if date := utils.Value(in.ReleaseDate); date == "" {
		errs.Add("release_date", "This field is required.")
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		errs.Add("release_date", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	if len(errs) == 0 {
		return nil
	}
	return &apiclient.Error{Op: "Service.Create", Kind: apiclient.KindApplication, Detail: errs.Detail(), Err: errs}
}

func (in MovieInput) multipart() *apiclient.Multipart {
	form := apiclient.NewMultipart()
	if in.Title != nil {
		form.Field("title", *in.Title)
	}
	if in.Description != nil {
		form.Field("description", *in.Description)
	}
	if in.ReleaseDate != nil {
		form.Field("release_date", *in.ReleaseDate)
	}
	if in.Poster != nil {
		form.File("image", in.Poster.Filename, in.Poster.Content)
	}
	return form
}
