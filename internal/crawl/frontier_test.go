package crawl

import (
	"net/url"
	"slices"
	"sync"
	"testing"
)

var denied = []string{".pdf", ".jpg", ".png"}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestFrontier_ShouldVisitOnce(t *testing.T) {
	f := NewFrontier(denied, 0)
	if !f.ShouldVisit("https://ex.com/a") {
		t.Fatal("first visit must be allowed")
	}
	if f.ShouldVisit("https://ex.com/a") {
		t.Fatal("second visit must be refused")
	}
}

func TestFrontier_MaxPages(t *testing.T) {
	f := NewFrontier(denied, 2)
	got := []bool{
		f.ShouldVisit("https://ex.com/1"),
		f.ShouldVisit("https://ex.com/2"),
		f.ShouldVisit("https://ex.com/3"),
	}
	if !slices.Equal(got, []bool{true, true, false}) {
		t.Errorf("ShouldVisit = %v", got)
	}
}

func TestFrontier_ConcurrentCheckAndMark(t *testing.T) {
	f := NewFrontier(denied, 0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.ShouldVisit("https://ex.com/same") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("location admitted %d times, want 1", wins)
	}
}

func TestFrontier_Expand(t *testing.T) {
	page := []byte(`<html><body>
		<a href="/b">relative</a>
		<a href="https://ex.com/c#section">fragment</a>
		<a href="https://other.com/c">other origin</a>
		<a href="guide.pdf">pdf</a>
		<a href="/img/logo.PNG">image</a>
		<a href="/b">duplicate</a>
		<a href="mailto:hi@ex.com">mail</a>
		<a href="/a">already visited</a>
		<a>no href</a>
		<a href="/docs/setup?step=2">query</a>
	</body></html>`)

	f := NewFrontier(denied, 0)
	f.ShouldVisit("https://ex.com/a")

	got := f.Expand(page, mustParse(t, "https://ex.com/a"), "https://ex.com")
	want := []string{
		"https://ex.com/b",
		"https://ex.com/c",
		"https://ex.com/docs/setup?step=2",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Expand =\n%v\nwant\n%v", got, want)
	}

	// expanding never marks
	if !f.ShouldVisit("https://ex.com/b") {
		t.Error("Expand must not mark links visited")
	}
}

func TestFrontier_ExpandResolvesAgainstPage(t *testing.T) {
	f := NewFrontier(nil, 0)
	got := f.Expand([]byte(`<a href="next">n</a><a href="../up">u</a>`),
		mustParse(t, "https://ex.com/docs/intro/"), "https://ex.com")
	want := []string{"https://ex.com/docs/intro/next", "https://ex.com/docs/up"}
	if !slices.Equal(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	base := mustParse(t, "https://ex.com/a/b")
	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"c", "https://ex.com/a/c", true},
		{"/root#frag", "https://ex.com/root", true},
		{"//cdn.ex.com/x", "https://cdn.ex.com/x", true},
		{"javascript:void(0)", "", false},
		{"ftp://ex.com/file", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(base, tt.href)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.href, got, ok, tt.want, tt.ok)
		}
	}
}
