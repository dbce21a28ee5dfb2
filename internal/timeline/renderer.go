package timeline

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/gema-activity-timeline/internal/i18n"
)

//go:embed views/*.tmpl
var views embed.FS

// Panel is the slide-over content: heading, description and entries.
type Panel struct {
	Locale      string  `json:"locale"`
	Heading     string  `json:"heading"`
	Description string  `json:"description"`
	Empty       string  `json:"empty"`
	Entries     []Entry `json:"entries"`
}

// Renderer localizes entries and renders the panel markup.
type Renderer struct {
	catalog *i18n.Catalog
	policy  *bluemonday.Policy
	panel   *template.Template
	now     func() time.Time
}

type panelView struct {
	Locale      string
	Heading     string
	Description string
	Empty       string
	Entries     []entryView
}

type entryView struct {
	Event     string
	Icon      string
	Color     string
	BatchUUID string
	Title     template.HTML
	Sentence  template.HTML
	Since     string
	Timestamp string
}

// NewRenderer parses the embedded panel template.
func NewRenderer(catalog *i18n.Catalog) (*Renderer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("timeline renderer requires a message catalog")
	}

	panel, err := template.ParseFS(views, "views/panel.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse panel template: %w", err)
	}

	return &Renderer{
		catalog: catalog,
		policy:  newMarkupPolicy(),
		panel:   panel,
		now:     time.Now,
	}, nil
}

// WithClock replaces the clock used for relative times.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	clone := *r
	clone.now = now
	return &clone
}

// RenderEntry fills the localized fields of entry: event label, sentence,
// title and the relative time badge. Every interpolated value is escaped.
func (r *Renderer) RenderEntry(entry *Entry, locale string) {
	tr := r.catalog.Translator(locale)

	entry.EventLabel = tr.Event(entry.Event)

	causer := html.EscapeString(entry.CauserName)
	event := html.EscapeString(entry.EventLabel)
	updated := html.EscapeString(entry.FormattedAt)
	changes := strings.Join(r.changeLines(tr, entry.Changes), "<br>")

	var sentence string
	if entry.Related {
		sentence = tr.Text(i18n.KeyPropertiesRelated, causer, event, html.EscapeString(entry.SubjectLabel), changes, updated)
	} else {
		sentence = tr.Text(i18n.KeyPropertiesModified, causer, event, changes, updated)
	}
	entry.Sentence = r.policy.Sanitize(sentence)

	subject := entry.SubjectLabel
	if entry.SubjectID > 0 {
		subject = subject + " #" + strconv.FormatUint(uint64(entry.SubjectID), 10)
	}
	entry.Title = r.policy.Sanitize(tr.Text(i18n.KeyTitleModified, html.EscapeString(subject), event, causer, updated))

	entry.Since = r.Since(entry.UpdatedAt)
}

// Since renders the relative time badge for t against the renderer clock.
func (r *Renderer) Since(t time.Time) string {
	return humanize.RelTime(t, r.now(), "ago", "from now")
}

// SanitizeTitle passes a caller supplied title through the markup policy.
func (r *Renderer) SanitizeTitle(title string) string {
	return r.policy.Sanitize(title)
}

// Panel assembles the localized panel around already rendered entries.
func (r *Renderer) Panel(locale string, limit int, entries []Entry) Panel {
	tr := r.catalog.Translator(locale)
	if entries == nil {
		entries = []Entry{}
	}
	return Panel{
		Locale:      tr.Locale(),
		Heading:     tr.Text(i18n.KeyModalHeading),
		Description: tr.Text(i18n.KeyModalDescription, strconv.Itoa(limit)),
		Empty:       tr.Text(i18n.KeyModalEmpty),
		Entries:     entries,
	}
}

// RenderPanel renders the panel fragment.
func (r *Renderer) RenderPanel(panel Panel) (string, error) {
	view := panelView{
		Locale:      panel.Locale,
		Heading:     panel.Heading,
		Description: panel.Description,
		Empty:       panel.Empty,
		Entries:     make([]entryView, 0, len(panel.Entries)),
	}
	for _, entry := range panel.Entries {
		view.Entries = append(view.Entries, entryView{
			Event:     entry.Event,
			Icon:      entry.Icon,
			Color:     entry.Color,
			BatchUUID: entry.BatchUUID,
			Title:     template.HTML(entry.Title),
			Sentence:  template.HTML(entry.Sentence),
			Since:     entry.Since,
			Timestamp: entry.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	var buf bytes.Buffer
	if err := r.panel.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render timeline panel: %w", err)
	}

	return r.policy.Sanitize(buf.String()), nil
}

func (r *Renderer) changeLines(tr i18n.Translator, changes []Change) []string {
	lines := make([]string, 0, len(changes))
	for _, change := range changes {
		key := html.EscapeString(change.Key)
		if change.Kind == ChangeModified {
			lines = append(lines, tr.Text(i18n.KeyCompareNotEquals, key, html.EscapeString(change.Old), html.EscapeString(change.New)))
			continue
		}
		lines = append(lines, tr.Text(i18n.KeyNewValues, key, html.EscapeString(change.Value())))
	}
	return lines
}

func newMarkupPolicy() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("section", "header", "h2", "p", "ol", "li", "div", "span", "small", "strong", "br", "time")
	policy.AllowAttrs("class").Globally()
	policy.AllowAttrs("datetime").OnElements("time")
	policy.AllowDataAttributes()
	return policy
}
