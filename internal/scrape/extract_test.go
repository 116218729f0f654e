package scrape

import (
	"testing"

	"github.com/hoofs-app/hoofs/internal/model"
)

const samplePage = `<!DOCTYPE html>
<html lang="fr">
<head>
<title>Fiche Concours N° 202512345 - Fontainebleau - FFE Compet</title>
</head>
<body>
<div class="entete">
Grand Prix Classique du Printemps Organisé par Les Écuries du Rocher
</div>
<div class="infos">
Du 14/06/2025 au 15/06/2025
<span class="adresse">77300 Fontainebleau</span>
<p>Organisateur : Les Écuries du Rocher</p>
<div>CSO Amateur 2 - Épreuve 1.10m</div>
<p>Ouvert aux engagements</p>
</div>
</body>
</html>`

func TestParsePage_AllFields(t *testing.T) {
	snap := parsePage([]byte(samplePage))

	if snap.Name != "Grand Prix Classique du Printemps" {
		t.Fatalf("name: %q", snap.Name)
	}
	if snap.Venue != "Fontainebleau" {
		t.Fatalf("venue: %q", snap.Venue)
	}
	if snap.StartDate != "2025-06-14" || snap.EndDate != "2025-06-15" {
		t.Fatalf("dates: %q..%q", snap.StartDate, snap.EndDate)
	}
	if snap.Organizer != "Les Écuries du Rocher" {
		t.Fatalf("organizer: %q", snap.Organizer)
	}
	if snap.Discipline != "CSO" {
		t.Fatalf("discipline: %q", snap.Discipline)
	}
	if !snap.IsOpen || snap.Status != model.StatusEngagement {
		t.Fatalf("openness: open=%v status=%s", snap.IsOpen, snap.Status)
	}
}

func TestParsePage_ClosedPage(t *testing.T) {
	page := `<html><head><title>Fiche Concours N° 1 - Saumur - FFE</title></head>
<body>
Concours Complet International des Écuyers Organisé par Cadre Noir
<p>Engagements clôturés</p>
</body></html>`

	snap := parsePage([]byte(page))
	if snap.IsOpen {
		t.Fatal("closed page must not read as open")
	}
	if snap.Status != model.StatusPrevisional {
		t.Fatalf("status: %s", snap.Status)
	}
}

func TestParsePage_DemandeVariant(t *testing.T) {
	page := `<html><body>
<p>Inscriptions ouvertes</p>
<button>Demande de participation</button>
</body></html>`

	snap := parsePage([]byte(page))
	if !snap.IsOpen || snap.Status != model.StatusDemande {
		t.Fatalf("open=%v status=%s", snap.IsOpen, snap.Status)
	}
}

func TestParsePage_OpennessVariants(t *testing.T) {
	cases := []struct {
		text string
		open bool
	}{
		{"Ouvert aux engagements", true},
		{"ouverte aux engagements", true},
		{"Engagements ouverts", true},
		{"engagement ouvert", true},
		{"Inscriptions ouvertes", true},
		{"Engagements clôturés", false},
		{"Concours terminé", false},
		{"", false},
	}
	for _, c := range cases {
		snap := parsePage([]byte("<html><body>" + c.text + "</body></html>"))
		if snap.IsOpen != c.open {
			t.Fatalf("%q: open=%v, want %v", c.text, snap.IsOpen, c.open)
		}
	}
}

func TestExtractName_KeywordFallback(t *testing.T) {
	page := `<html><body>
<span>Championnat Départemental des Jeunes Cavaliers</span>
</body></html>`

	snap := parsePage([]byte(page))
	if snap.Name != "Championnat Départemental des Jeunes Cavaliers" {
		t.Fatalf("name: %q", snap.Name)
	}
}

func TestExtractName_Blocklist(t *testing.T) {
	// The first candidate embeds a blocklisted phrase; the labeled fallback
	// wins.
	page := `<html><body>
Fiche Concours de Printemps Organisé par Le Club
<p>Intitulé : Concours Amical des Trois Vallées</p>
</body></html>`

	snap := parsePage([]byte(page))
	if snap.Name != "Concours Amical des Trois Vallées" {
		t.Fatalf("name: %q", snap.Name)
	}
}

func TestExtractName_EntityDecoding(t *testing.T) {
	page := `<html><body>
Jumping des Sables &amp; de l&#39;Atlantique Organisé par ACME
</body></html>`

	snap := parsePage([]byte(page))
	if snap.Name != "Jumping des Sables & de l'Atlantique" {
		t.Fatalf("name: %q", snap.Name)
	}
}

func TestParsePage_NameFallsBackToDisciplineVenue(t *testing.T) {
	page := `<html><head><title>Fiche Concours N° 9 - Saumur</title></head>
<body><p>Dressage libre en musique</p></body></html>`

	snap := parsePage([]byte(page))
	if snap.Name != "Dressage - Saumur" {
		t.Fatalf("name: %q", snap.Name)
	}
}

func TestExtractVenue_AddressFallback(t *testing.T) {
	page := `<html><head><title>sans titre utile</title></head>
<body><div>49400 Saumur</div></body></html>`

	snap := parsePage([]byte(page))
	if snap.Venue != "49400 Saumur" {
		t.Fatalf("venue: %q", snap.Venue)
	}
}

func TestExtractVenue_TitleEntitiesAndUnclosedTags(t *testing.T) {
	// The tokenizer decodes entities in the title and tolerates the missing
	// head/body closing tags.
	page := `<html><head><title>Fiche Concours N&#176; 4 - Le Mans - FFE</title><body><p>texte`

	snap := parsePage([]byte(page))
	if snap.Venue != "Le Mans" {
		t.Fatalf("venue: %q", snap.Venue)
	}
}

func TestExtractDates_SingleDateServesAsBoth(t *testing.T) {
	snap := parsePage([]byte(`<html><body>Le 07/09/2025 uniquement</body></html>`))
	if snap.StartDate != "2025-09-07" || snap.EndDate != "2025-09-07" {
		t.Fatalf("dates: %q..%q", snap.StartDate, snap.EndDate)
	}

	snap = parsePage([]byte(`<html><body>aucune date ici</body></html>`))
	if snap.StartDate != "" || snap.EndDate != "" {
		t.Fatalf("dates: %q..%q", snap.StartDate, snap.EndDate)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"14/06/2025", "2025-06-14"},
		{"4/06/2025", "2025-06-04"},
		{"2025-06-14", "2025-06-14"},
		{"14 juin 2025", ""},
		{"", ""},
		{"14/06/25", ""},
	}
	for _, c := range cases {
		if got := NormalizeDate(c.in); got != c.want {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractDiscipline_CodeOrderAndFallback(t *testing.T) {
	cases := []struct {
		page string
		want string
	}{
		{"<div>CSO Amateur 2</div>", "CSO"},
		{"<div>DR Club 1</div>", "Dressage"},
		{"<div>AT Poney élite</div>", "Attelage"},
		// Code with qualifier beats the full-word list regardless of position.
		{"<div>endurance</div><div>HU Pro</div>", "Hunter"},
		// Full-word fallback, case-insensitive.
		{"<div>Concours de voltige en cercle</div>", "Voltige"},
		{"<div>rien d'équestre</div>", ""},
	}
	for _, c := range cases {
		snap := parsePage([]byte("<html><body>" + c.page + "</body></html>"))
		if snap.Discipline != c.want {
			t.Fatalf("%q: discipline=%q, want %q", c.page, snap.Discipline, c.want)
		}
	}
}

func TestExtractOrganizer_LabeledAndNumbered(t *testing.T) {
	snap := parsePage([]byte(`<html><body><p>Organisateur : Haras de la Cense</p></body></html>`))
	if snap.Organizer != "Haras de la Cense" {
		t.Fatalf("organizer: %q", snap.Organizer)
	}

	snap = parsePage([]byte(`<html><body><span>Société Hippique de Pau (0644002)</span></body></html>`))
	if snap.Organizer != "Société Hippique de Pau" {
		t.Fatalf("organizer: %q", snap.Organizer)
	}
}
