package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sensorPage(speed, direction, timestamp string) string {
	return fmt.Sprintf(`<html><body><table>
<tr><td>Speed</td><td id="latestVariable2">%s</td></tr>
<tr><td>Direction</td><td id="latestVariable1">%s</td></tr>
<tr><td>Time</td><td id="latestTimestamp">%s</td></tr>
</table></body></html>`, speed, direction, timestamp)
}

func TestParseReadings_Ready(t *testing.T) {
	r, err := parseReadings(sensorPage("  12.4 kn\n", "\t270 ", " 2025-06-01 12:00 "))
	require.NoError(t, err)

	assert.Equal(t, "12.4 kn", r.speed)
	assert.Equal(t, "270", r.direction)
	assert.Equal(t, "2025-06-01 12:00", r.timestamp)
	assert.True(t, r.ready())
}

func TestParseReadings_Placeholders(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"all unset", sensorPage("---", "---", "---")},
		{"speed unset", sensorPage("---", "270", "12:00")},
		{"direction unset", sensorPage("12", " --- ", "12:00")},
		{"timestamp unset", sensorPage("12", "270", "---")},
		{"elements missing", `<html><body><p>loading</p></body></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseReadings(tt.html)
			require.NoError(t, err)
			assert.False(t, r.ready())
		})
	}
}

func TestParseReadings_NestedMarkup(t *testing.T) {
	page := `<div id="latestVariable2"><span>8</span> <b>kn</b></div>
<div id="latestVariable1">90</div><div id="latestTimestamp">now</div>`
	r, err := parseReadings(page)
	require.NoError(t, err)
	assert.Equal(t, "8 kn", r.speed)
	assert.True(t, r.ready())
}

func TestFieldText_UsesFirstMatch(t *testing.T) {
	page := `<td id="latestVariable2">14</td><td id="latestVariable2">---</td>
<td id="latestVariable1">180</td><td id="latestTimestamp">09:30</td>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, "14", fieldText(doc, speedSel))
	assert.Equal(t, "180", fieldText(doc, directionSel))
	assert.Equal(t, "09:30", fieldText(doc, timestampSel))
	assert.Equal(t, Placeholder, fieldText(doc, cascadia.MustCompile("#missing")))
}
