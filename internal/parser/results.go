package parser

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"gradcafe_scraper/internal/models"
)

// mainRowMarker is the style class the survey table puts on the institution
// cell of a result's first row.
const mainRowMarker = "div[class*='font-medium']"

// defaultDegree is used when the program cell lacks a separate degree span.
const defaultDegree = "Other"

var (
	listingDateRegex = regexp.MustCompile(`\d{1,2}\s+[A-Za-z]{3}\s+\d{4}`)
	decisionRegex    = regexp.MustCompile(`(?i)(Accepted|Rejected|Wait listed|Waitlisted|Interview)`)
)

// Page is one parsed listing page.
type Page struct {
	URL string
	// Text is the visible text of the whole document, used to spot block pages.
	Text    string
	Entries []models.RawEntry
}

// ResultParser defines the contract for turning listing markup into raw
// entries. It knows how to read the survey table structure.
type ResultParser interface {
	ParsePage(ctx context.Context, reader io.Reader, sourceURL string) (*Page, error)
}

// surveyTableParser is the concrete implementation for the survey listing.
type surveyTableParser struct {
}

// NewResultParser creates a new parser instance.
func NewResultParser() ResultParser {
	return &surveyTableParser{}
}

// ParsePage parses the document and rebuilds its multi-row results in
// document order. A page without table rows yields no entries and no error.
func (p *surveyTableParser) ParsePage(ctx context.Context, reader io.Reader, sourceURL string) (*Page, error) {
	doc, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	root := goquery.NewDocumentFromNode(doc)

	return &Page{
		URL:     sourceURL,
		Text:    strippedText(root.Selection, " "),
		Entries: extractEntries(root.Find("tr"), sourceURL),
	}, nil
}

// row is either a mainRow, which opens a result, or a detailRow, which
// continues the open one.
type row interface {
	isRow()
}

type mainRow struct {
	institution  string
	program      string
	degree       string
	text         string
	date         string
	decisionHint string
}

type detailRow struct {
	text    string
	comment string
}

func (mainRow) isRow()   {}
func (detailRow) isRow() {}

// classifyRow decides whether tr starts a new result: it needs two data cells
// and either the style marker or a first cell longer than two characters.
func classifyRow(tr *goquery.Selection) row {
	cells := tr.Find("td")
	if cells.Length() >= 2 {
		if tr.Find(mainRowMarker).Length() > 0 || utf8.RuneCountInString(strippedText(cells.First(), "")) > 2 {
			return readMainRow(tr, cells)
		}
	}

	d := detailRow{text: collapse(strippedText(tr, " "))}
	if p := tr.Find("p").First(); p.Length() > 0 {
		d.comment = strippedText(p, "")
	}
	return d
}

func readMainRow(tr, cells *goquery.Selection) mainRow {
	m := mainRow{
		institution: strippedText(cells.First(), ""),
		degree:      defaultDegree,
		text:        strippedText(tr, " "),
	}

	spans := cells.Eq(1).Find("span")
	if spans.Length() > 0 {
		m.program = strippedText(spans.First(), "")
	}
	if spans.Length() > 1 {
		m.degree = strippedText(spans.Last(), "")
	}

	m.decisionHint = decisionRegex.FindString(m.text)

	cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if found := listingDateRegex.FindString(strippedText(cell, " ")); found != "" {
			m.date = found
			return false
		}
		return true
	})
	return m
}

// extractEntries folds the row stream into entries: a main row closes the open
// entry and starts a new one, a detail row appends to the open entry.
func extractEntries(rows *goquery.Selection, sourceURL string) []models.RawEntry {
	var entries []models.RawEntry
	var current models.RawEntry

	rows.Each(func(_ int, tr *goquery.Selection) {
		switch r := classifyRow(tr).(type) {
		case mainRow:
			if current != nil {
				entries = append(entries, finalize(current))
			}
			current = models.RawEntry{
				models.KeyInstitution:  r.institution,
				models.KeyProgram:      r.program,
				models.KeyDegree:       r.degree,
				models.KeyText:         r.text,
				models.KeyComments:     "",
				models.KeyURL:          sourceURL,
				models.KeyDecisionHint: r.decisionHint,
				models.KeyDate:         r.date,
			}
		case detailRow:
			if current == nil {
				return
			}
			if r.text != "" {
				current[models.KeyText] = current.String(models.KeyText) + " " + r.text
			}
			if r.comment != "" {
				current[models.KeyComments] = current.String(models.KeyComments) + " " + r.comment
			}
		}
	})

	if current != nil {
		entries = append(entries, finalize(current))
	}
	return entries
}

func finalize(e models.RawEntry) models.RawEntry {
	e[models.KeyText] = collapse(e.String(models.KeyText))
	e[models.KeyComments] = collapse(e.String(models.KeyComments))
	return e
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// strippedText joins the trimmed, non-empty text nodes under sel with sep.
// Script and style contents are not visible text and are skipped.
func strippedText(sel *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}
