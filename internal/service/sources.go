package service

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
)

type rawSource struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Snippet    string   `json:"snippet"`
	Content    string   `json:"content"`
	Confidence *float64 `json:"confidence"`
}

// formatSources numbers gateway citations s1..sN and fills in missing fields.
func formatSources(raw []rawSource) []domain.Source {
	if len(raw) == 0 {
		return nil
	}

	sources := make([]domain.Source, 0, len(raw))
	for i, r := range raw {
		n := i + 1

		title := plainText(r.Title)
		if title == "" {
			title = fmt.Sprintf("Source %d", n)
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Content
		}
		confidence := config.DefaultSourceConfidence
		if r.Confidence != nil && *r.Confidence != 0 {
			confidence = *r.Confidence
		}

		sources = append(sources, domain.Source{
			ID:         fmt.Sprintf("s%d", n),
			Title:      title,
			URL:        strings.TrimSpace(r.URL),
			Snippet:    plainText(snippet),
			Confidence: domain.ClampConfidence(confidence),
		})
	}
	return sources
}

// plainText strips markup from retrieved text and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
