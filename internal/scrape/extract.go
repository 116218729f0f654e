package scrape

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Extraction patterns mirror the public FFE page markup. Each field tries its
// patterns in order; the first accepted match wins.
var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([A-ZÀ-Ÿ][^<\n]{10,80}?)\s*Organis[ée]\s+par`),
		regexp.MustCompile(`(?i)>([^<]*(?:Championnat|Grand Prix|Derby|Challenge)[^<]{5,50})<`),
		regexp.MustCompile(`(?i)Intitul[ée][^:]*:\s*([^<\n]+)`),
	}
	nameExclusions = []string{"ffe compet", "ffecompet", "fiche concours"}

	venueTitlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^[^-]+-\s*([A-ZÀ-Ÿ][A-Za-zÀ-ÿ\s\-']+?)(?:\s*-|\s*$)`),
		regexp.MustCompile(`(?i)fiche concours[^-]+-\s*([A-ZÀ-Ÿ][A-Za-zÀ-ÿ\s\-']+)`),
	}
	// Address fallbacks run against the raw page and are case-sensitive: a
	// postal code is always followed by a capitalized city name.
	venueAddressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{5}\s+[A-ZÀ-Ÿ][A-Za-zÀ-ÿ\s\-']+)`),
		regexp.MustCompile(`<span[^>]*class="[^"]*adresse[^"]*"[^>]*>([^<]+)</span>`),
	}

	datePattern = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`)

	organizerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Organisateur[^:]*:\s*([^<\n]+)`),
		regexp.MustCompile(`(?i)>([A-ZÀ-Ÿ][A-Za-zÀ-ÿ\s\-']+)\s*\(\d+\)`),
	}

	openPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[Oo]uvert(?:e)?(?:s)?\s+aux\s+engagements`),
		regexp.MustCompile(`(?i)[Ee]ngagements?\s+ouverts?`),
		regexp.MustCompile(`(?i)[Ii]nscriptions?\s+ouvertes?`),
	}
	demandePattern = regexp.MustCompile(`(?i)demande\s+de\s+participation`)

	isoDatePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	frenchDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{2})/(\d{4})$`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// disciplineCodes maps FFE discipline codes to display names. Order matters:
// the first code found next to a level qualifier wins.
var disciplineCodes = []struct {
	code string
	name string
	re   *regexp.Regexp
}{
	{code: "AT", name: "Attelage"},
	{code: "CSO", name: "CSO"},
	{code: "CCE", name: "CCE"},
	{code: "DR", name: "Dressage"},
	{code: "HU", name: "Hunter"},
	{code: "EN", name: "Endurance"},
	{code: "WE", name: "Western"},
	{code: "VO", name: "Voltige"},
	{code: "EQ", name: "Équitation"},
	{code: "PO", name: "Pony Games"},
}

var disciplineNames = []string{"Attelage", "Dressage", "Hunter", "Endurance", "Western", "Voltige"}

func init() {
	for i := range disciplineCodes {
		d := &disciplineCodes[i]
		d.re = regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\s+(?:Amateur|Club|Pro|Poney)`, d.code))
	}
}

// parsePage extracts the descriptive fields, openness, and derived status
// from one fetched page body. Fetch metadata is filled in by the caller.
func parsePage(body []byte) model.Snapshot {
	page := string(body)

	var snap model.Snapshot
	snap.Name = extractName(page)
	snap.Venue = extractVenue(body, page)
	snap.StartDate, snap.EndDate = extractDates(page)
	snap.Organizer = extractOrganizer(page)
	snap.Discipline = extractDiscipline(page)
	snap.IsOpen = pageIsOpen(page)
	snap.Status = deriveStatus(page, snap.IsOpen)

	// Pages without a usable name still get a readable label.
	if snap.Name == "" && (snap.Venue != "" || snap.Discipline != "") {
		var parts []string
		if snap.Discipline != "" {
			parts = append(parts, snap.Discipline)
		}
		if snap.Venue != "" {
			parts = append(parts, snap.Venue)
		}
		snap.Name = strings.Join(parts, " - ")
	}
	return snap
}

func extractName(page string) string {
	for _, re := range namePatterns {
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			name := collapseWhitespace(m[1])
			name = strings.ReplaceAll(name, "&amp;", "&")
			name = strings.ReplaceAll(name, "&#39;", "'")
			if utf8.RuneCountInString(name) <= 10 {
				continue
			}
			lower := strings.ToLower(name)
			excluded := false
			for _, excl := range nameExclusions {
				if strings.Contains(lower, excl) {
					excluded = true
					break
				}
			}
			if !excluded {
				return name
			}
		}
	}
	return ""
}

func extractVenue(body []byte, page string) string {
	if title := extractTitle(body); title != "" {
		for _, re := range venueTitlePatterns {
			if m := re.FindStringSubmatch(title); m != nil {
				venue := collapseWhitespace(m[1])
				if utf8.RuneCountInString(venue) > 3 {
					return venue
				}
			}
		}
	}
	for _, re := range venueAddressPatterns {
		if m := re.FindStringSubmatch(page); m != nil {
			venue := collapseWhitespace(m[1])
			if utf8.RuneCountInString(venue) > 5 {
				return venue
			}
		}
	}
	return ""
}

// extractTitle pulls the <title> text with the tolerant html tokenizer, so
// broken markup elsewhere on the page cannot hide the title.
func extractTitle(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				if z.Next() == html.TextToken {
					return strings.TrimSpace(string(z.Text()))
				}
				return ""
			}
		}
	}
}

// extractDates returns the first two DD/MM/YYYY occurrences as (start, end).
// A single date serves as both; none yields two empty strings.
func extractDates(page string) (string, string) {
	dates := datePattern.FindAllString(page, 2)
	switch len(dates) {
	case 0:
		return "", ""
	case 1:
		d := NormalizeDate(dates[0])
		return d, d
	default:
		return NormalizeDate(dates[0]), NormalizeDate(dates[1])
	}
}

// NormalizeDate converts DD/MM/YYYY to YYYY-MM-DD. ISO input passes through;
// anything else yields the empty string.
func NormalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	if isoDatePattern.MatchString(raw) {
		return raw
	}
	m := frenchDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	day := m[1]
	if len(day) == 1 {
		day = "0" + day
	}
	return m[3] + "-" + m[2] + "-" + day
}

func extractOrganizer(page string) string {
	for _, re := range organizerPatterns {
		if m := re.FindStringSubmatch(page); m != nil {
			org := collapseWhitespace(m[1])
			if utf8.RuneCountInString(org) > 2 {
				return org
			}
		}
	}
	return ""
}

func extractDiscipline(page string) string {
	for _, d := range disciplineCodes {
		if d.re.MatchString(page) {
			return d.name
		}
	}
	lower := strings.ToLower(page)
	for _, name := range disciplineNames {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}

func pageIsOpen(page string) bool {
	for _, re := range openPatterns {
		if re.MatchString(page) {
			return true
		}
	}
	return false
}

// deriveStatus maps openness to a status: an open page is an engagement
// unless it advertises the international "demande de participation" flow;
// a closed page reads as previsional.
func deriveStatus(page string, isOpen bool) model.EventStatus {
	if !isOpen {
		return model.StatusPrevisional
	}
	if demandePattern.MatchString(page) {
		return model.StatusDemande
	}
	return model.StatusEngagement
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
