// Package digest renders the submission report email.
package digest

import (
	"html/template"
	"strconv"
	"strings"
	"time"

	"quizdigest/internal/model"
)

const (
	// TimeLayout is how the checkpoint appears in the email body.
	TimeLayout = "2006-01-02 15:04:05"

	firstRunSubject = "Quiz Submissions Report"
	firstRunBody    = "<p>Unable to determine the last run time.</p>"
	missingValue    = "N/A"
)

var (
	listTmpl = template.Must(template.New("list").Parse(
		`<p>Students who submitted the quiz since the last run on {{.Since}} ({{.Zone}}):</p><ul>` +
			`{{range .Items}}<li>User ID: {{.UserID}}, Name: {{.Name}}, Email: {{.Email}}, Score: {{.Score}}, ` +
			`<a href='{{.ReviewURL}}'>Quiz Attempt</a></li>{{end}}</ul>`))

	emptyTmpl = template.Must(template.New("empty").Parse(
		`<p>No new quiz submissions since the last run on {{.Since}} ({{.Zone}}).</p>`))
)

// Digest is a rendered email.
type Digest struct {
	Subject string
	HTML    string
}

type Renderer struct {
	title string
	loc   *time.Location
}

// NewRenderer returns a renderer whose subject names the given report title.
// Checkpoint times are shown in loc.
func NewRenderer(title string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{title: title, loc: loc}
}

type item struct {
	UserID    int64
	Name      string
	Email     string
	Score     string
	ReviewURL string
}

type view struct {
	Since string
	Zone  string
	Items []item
}

// Render builds the digest. With no checkpoint the records are ignored and a
// fixed first-run message is produced. User supplied fields are HTML-escaped.
func (r *Renderer) Render(since *time.Time, records []model.SubmissionRecord) (Digest, error) {
	if since == nil {
		return Digest{Subject: firstRunSubject, HTML: firstRunBody}, nil
	}

	local := since.In(r.loc)
	v := view{
		Since: local.Format(TimeLayout),
		Zone:  local.Format("MST"),
	}

	tmpl := emptyTmpl
	if len(records) > 0 {
		tmpl = listTmpl
		v.Items = make([]item, 0, len(records))
		for _, rec := range records {
			v.Items = append(v.Items, item{
				UserID:    rec.UserID,
				Name:      orMissing(rec.Name),
				Email:     orMissing(rec.Email),
				Score:     formatScore(rec.Score),
				ReviewURL: rec.ReviewURL,
			})
		}
	}

	var body strings.Builder
	if err := tmpl.Execute(&body, v); err != nil {
		return Digest{}, err
	}
	return Digest{Subject: r.Subject(), HTML: body.String()}, nil
}

// Subject is the subject line used whenever a checkpoint exists.
func (r *Renderer) Subject() string {
	return "Quiz Submissions Report for " + r.title
}

func orMissing(s *string) string {
	if s == nil {
		return missingValue
	}
	return *s
}

func formatScore(score *float64) string {
	if score == nil {
		return missingValue
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}
