package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Placeholder is what the sensor page renders before its values load.
const Placeholder = "---"

var (
	speedSel     = cascadia.MustCompile("#latestVariable2")
	directionSel = cascadia.MustCompile("#latestVariable1")
	timestampSel = cascadia.MustCompile("#latestTimestamp")
)

// readings are the three raw fields of the sensor table.
type readings struct {
	speed     string
	direction string
	timestamp string
}

// ready reports whether every field has left the placeholder.
func (r readings) ready() bool {
	return r.speed != Placeholder &&
		r.direction != Placeholder &&
		r.timestamp != Placeholder
}

// parseReadings reads the sensor fields out of rendered page HTML.
// A missing element counts as the placeholder.
func parseReadings(rendered string) (readings, error) {
	root, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return readings{}, fmt.Errorf("parse rendered html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	return readings{
		speed:     fieldText(doc, speedSel),
		direction: fieldText(doc, directionSel),
		timestamp: fieldText(doc, timestampSel),
	}, nil
}

func fieldText(doc *goquery.Document, m goquery.Matcher) string {
	sel := doc.FindMatcher(m).First()
	if sel.Length() == 0 {
		return Placeholder
	}
	return strings.TrimSpace(sel.Text())
}
