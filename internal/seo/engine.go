// Package seo computes SEO quality scores for page metadata.
//
// A score is the sum of seven independent checks:
//   - Title length between 30 and 60 characters: 20
//   - Description length between 120 and 155 characters: 20
//   - Between 3 and 8 keywords: 15
//   - Open Graph image present: 15
//   - Canonical URL present: 10
//   - Structured data present: 10
//   - Title not shared with any other page: 10
package seo

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pagepulse/pagepulse/internal/model"
)

const (
	titlePoints          = 20
	descriptionPoints    = 20
	keywordsPoints       = 15
	ogImagePoints        = 15
	canonicalPoints      = 10
	structuredDataPoints = 10
	uniqueTitlePoints    = 10

	titleMinLen       = 30
	titleMaxLen       = 60
	descriptionMinLen = 120
	descriptionMaxLen = 155
	keywordsMin       = 3
	keywordsMax       = 8
)

// result accumulates points and paired diagnostics.
type result struct {
	score       int
	issues      []string
	suggestions []string
}

func (r *result) pass(points int) {
	r.score += points
}

func (r *result) fail(issue, suggestion string) {
	r.issues = append(r.issues, issue)
	r.suggestions = append(r.suggestions, suggestion)
}

// Score computes the quality score of page. allPages is the sibling set used for
// duplicate-title detection; it may contain page itself, which is skipped.
// A nil page fails every check.
func Score(page *model.PageMetadata, allPages []*model.PageMetadata) model.ScoreResult {
	if page == nil {
		page = &model.PageMetadata{}
	}

	r := &result{
		issues:      []string{},
		suggestions: []string{},
	}

	checkTitle(r, page.Title)
	checkDescription(r, page.Description)
	checkKeywords(r, page.Keywords)

	if strings.TrimSpace(page.OGImage) != "" {
		r.pass(ogImagePoints)
	} else {
		r.fail("Missing Open Graph image",
			"Add an og:image so the page renders a preview card when shared")
	}

	if strings.TrimSpace(page.CanonicalURL) != "" {
		r.pass(canonicalPoints)
	} else {
		r.fail("Missing canonical URL",
			"Set a canonical URL to avoid duplicate-content penalties")
	}

	if len(page.StructuredData) > 0 {
		r.pass(structuredDataPoints)
	} else {
		r.fail("Missing structured data",
			"Add JSON-LD structured data describing the page content")
	}

	if n := countDuplicateTitles(page, allPages); n == 0 {
		r.pass(uniqueTitlePoints)
	} else {
		r.fail(fmt.Sprintf("Duplicate title, found in %d other %s", n, plural(n, "page", "pages")),
			"Give this page a title that no other page uses")
	}

	return model.ScoreResult{
		Score:       r.score,
		Status:      StatusFor(r.score),
		Issues:      r.issues,
		Suggestions: r.suggestions,
	}
}

// StatusFor maps a score to its band. Each band includes its lower bound.
func StatusFor(score int) model.ScoreStatus {
	switch {
	case score >= 90:
		return model.ScoreStatusExcellent
	case score >= 70:
		return model.ScoreStatusGood
	case score >= 50:
		return model.ScoreStatusNeedsImprovement
	default:
		return model.ScoreStatusPoor
	}
}

func checkTitle(r *result, title string) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	switch {
	case n == 0:
		r.fail("Missing title",
			fmt.Sprintf("Add a title between %d and %d characters", titleMinLen, titleMaxLen))
	case n < titleMinLen:
		r.fail(fmt.Sprintf("Title too short (%d characters)", n),
			fmt.Sprintf("Expand the title to at least %d characters", titleMinLen))
	case n > titleMaxLen:
		r.fail(fmt.Sprintf("Title too long (%d characters)", n),
			fmt.Sprintf("Shorten the title to at most %d characters so it is not truncated", titleMaxLen))
	default:
		r.pass(titlePoints)
	}
}

func checkDescription(r *result, description string) {
	description = strings.TrimSpace(description)
	n := utf8.RuneCountInString(description)
	switch {
	case n == 0:
		r.fail("Missing meta description",
			fmt.Sprintf("Add a meta description between %d and %d characters", descriptionMinLen, descriptionMaxLen))
	case n < descriptionMinLen:
		r.fail(fmt.Sprintf("Meta description too short (%d characters)", n),
			fmt.Sprintf("Expand the description to at least %d characters", descriptionMinLen))
	case n > descriptionMaxLen:
		r.fail(fmt.Sprintf("Meta description too long (%d characters)", n),
			fmt.Sprintf("Shorten the description to at most %d characters", descriptionMaxLen))
	default:
		r.pass(descriptionPoints)
	}
}

func checkKeywords(r *result, keywords []string) {
	n := 0
	for _, k := range keywords {
		if strings.TrimSpace(k) != "" {
			n++
		}
	}
	switch {
	case n == 0:
		r.fail("Missing keywords",
			fmt.Sprintf("Add between %d and %d focus keywords", keywordsMin, keywordsMax))
	case n < keywordsMin:
		r.fail(fmt.Sprintf("Too few keywords (%d)", n),
			fmt.Sprintf("Add keywords until there are at least %d", keywordsMin))
	case n > keywordsMax:
		r.fail(fmt.Sprintf("Too many keywords (%d)", n),
			fmt.Sprintf("Trim the list to the %d most relevant keywords", keywordsMax))
	default:
		r.pass(keywordsPoints)
	}
}

// countDuplicateTitles counts other pages whose normalized title equals page's.
// Blank titles never match.
func countDuplicateTitles(page *model.PageMetadata, allPages []*model.PageMetadata) int {
	title := normalizeTitle(page.Title)
	if title == "" {
		return 0
	}

	n := 0
	for _, other := range allPages {
		if other == nil || other == page {
			continue
		}
		if page.ID != "" && other.ID == page.ID {
			continue
		}
		if normalizeTitle(other.Title) == title {
			n++
		}
	}
	return n
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
