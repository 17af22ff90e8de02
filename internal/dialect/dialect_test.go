package dialect

import (
	"testing"
	"time"

	"github.com/northbound-policy/ingest/internal/model"
)

const sampleMoEPage = `
<html><body>
<table><tbody>
<tr><td><a href="/docs/circular-1.pdf">Circular on Admissions</a></td></tr>
<tr><td><a href="/docs/circular-2.pdf"></a></td></tr>
<tr><td><a href="/about">About us</a></td></tr>
</tbody></table>
<a class="next" href="/list?page=2">Next</a>
</body></html>`

func TestMoEDiscoverLinksToleratesMissingTitle(t *testing.T) {
	s := For(model.DialectMoE, nil)
	links, err := s.DiscoverLinks(sampleMoEPage, "https://moe.example.gov/list?page=1")
	if err != nil {
		t.Fatalf("DiscoverLinks() error = %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2 (non-document anchors excluded): %+v", len(links), links)
	}
	if links[0].Title != "Circular on Admissions" {
		t.Errorf("Title = %q, want anchor text", links[0].Title)
	}
	if links[1].Title != "circular-2.pdf" {
		t.Errorf("Title = %q, want URL fallback", links[1].Title)
	}
}

func TestMoENextPage(t *testing.T) {
	s := For(model.DialectMoE, nil)
	next, ok := s.NextPage(sampleMoEPage, "https://moe.example.gov/list?page=1")
	if !ok {
		t.Fatal("expected a next page link")
	}
	if next != "https://moe.example.gov/list?page=2" {
		t.Errorf("NextPage() = %q", next)
	}
}

func TestGenericScraperKeywordMatch(t *testing.T) {
	page := `<a href="/notice/123">Annual Syllabus Update</a>`
	s := For(model.DialectGeneric, []string{"syllabus"})
	links, err := s.DiscoverLinks(page, "https://college.example.edu/")
	if err != nil {
		t.Fatalf("DiscoverLinks() error = %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
}

func TestSanitizeFilename(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := SanitizeFilename(`Weird: "Name"/With\Chars?*`, "pdf", now)
	want := "Weird- -Name-_With_Chars--_1700000000.pdf"
	if got != want {
		t.Errorf("SanitizeFilename() = %q, want %q", got, want)
	}
}
