// Package prompt builds the dual research queries for a tour request.
// Everything here is pure: same request in, same prompt pair out.
package prompt

import (
	"fmt"
	"strings"

	"github.com/wayline/tour-audio-pipeline/api/tour"
)

// Query is an immutable research request description.
type Query struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Output budget split between the two query legs. The street leg carries
// the bulk of the narration; the area leg sets neighborhood context.
const (
	DefaultTotalTokens = 4000
	areaBudgetShare    = 0.3
)

// lenses maps an interest keyword to the thematic phrase woven into the
// prompts. The phrase biases the research angle without being dictated
// to the model as a rule.
var lenses = map[string]string{
	"history":      "the events, eras, and people that shaped this place over time",
	"architecture": "building styles, construction details, and how the built fabric evolved",
	"food":         "culinary traditions, notable eateries, and the flavors locals actually seek out",
	"culture":      "local customs, communities, and the everyday life of the neighborhood",
	"art":          "public art, galleries, studios, and the creative scene past and present",
	"nature":       "parks, trees, waterways, and the green spaces threaded through the streets",
	"shopping":     "markets, independent shops, and the commercial character of the area",
	"nightlife":    "bars, venues, and how the street changes after dark",
	"literature":   "writers, books, and stories connected to these streets",
	"music":        "venues, musicians, and the sounds associated with this place",
}

// Lens returns the thematic phrase for an interest, falling back to a
// generic angle for unknown keywords.
func Lens(interest string) string {
	if phrase, ok := lenses[strings.ToLower(strings.TrimSpace(interest))]; ok {
		return phrase
	}
	return fmt.Sprintf("stories and details related to %s", strings.TrimSpace(interest))
}

// BuildQueries returns the area-scoped and street-scoped query pair for
// a generation request. totalTokens <= 0 selects the default budget.
func BuildQueries(req tour.GenerateRequest, totalTokens int) (area Query, street Query) {
	if totalTokens <= 0 {
		totalTokens = DefaultTotalTokens
	}
	areaTokens := int(float64(totalTokens) * areaBudgetShare)
	streetTokens := totalTokens - areaTokens

	lensBlock := interestLensBlock(req.Interests)
	system := "You are a knowledgeable local guide writing a narrated walking tour. " +
		"Write flowing spoken prose for a listener on foot. No headings, no lists, no meta commentary. " +
		"Weave these angles through the narration:\n" + lensBlock

	area = Query{
		SystemPrompt: system,
		UserPrompt:   areaUserPrompt(req.Location),
		MaxTokens:    areaTokens,
	}
	street = Query{
		SystemPrompt: system,
		UserPrompt:   streetUserPrompt(req.Location, req.SelectedPlaces),
		MaxTokens:    streetTokens,
	}
	return area, street
}

func interestLensBlock(interests []string) string {
	var b strings.Builder
	for _, interest := range interests {
		interest = strings.TrimSpace(interest)
		if interest == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", strings.ToLower(interest), Lens(interest))
	}
	return b.String()
}

func areaUserPrompt(loc tour.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Set the scene for the neighborhood around %s", loc.StreetName)
	if loc.Area != "" {
		fmt.Fprintf(&b, " in %s", loc.Area)
	}
	if loc.City != "" {
		fmt.Fprintf(&b, ", %s", loc.City)
	}
	if loc.Country != "" {
		fmt.Fprintf(&b, ", %s", loc.Country)
	}
	b.WriteString(". Cover the broader district: its origins, character, and what a visitor should sense walking in. Keep it to scene-setting; the street itself comes later.")
	return b.String()
}

func streetUserPrompt(loc tour.Location, selected []tour.Place) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Now narrate %s itself", loc.StreetName)
	if loc.City != "" {
		fmt.Fprintf(&b, " in %s", loc.City)
	}
	b.WriteString(": its story, its details, what to look at while walking its length.")
	if len(selected) > 0 {
		b.WriteString(" Give particular attention to these stops, in walking order:\n")
		for _, place := range selected {
			fmt.Fprintf(&b, "- %s", place.Name)
			if place.Address != "" {
				fmt.Fprintf(&b, " (%s)", place.Address)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
