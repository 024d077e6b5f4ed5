package crawl

import (
	"bytes"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"
)

// Frontier is the visited set of one crawl run plus the rules for growing it.
// It is safe for concurrent use; ShouldVisit checks and marks in one step.
type Frontier struct {
	mu       sync.Mutex
	visited  map[string]struct{}
	order    []string
	denied   []string
	maxPages int
}

// NewFrontier creates an empty frontier. maxPages <= 0 means no ceiling.
func NewFrontier(deniedExtensions []string, maxPages int) *Frontier {
	denied := make([]string, len(deniedExtensions))
	for i, ext := range deniedExtensions {
		denied[i] = strings.ToLower(ext)
	}
	return &Frontier{
		visited:  make(map[string]struct{}),
		denied:   denied,
		maxPages: maxPages,
	}
}

// ShouldVisit marks location visited and returns true, unless it was already
// visited or the page ceiling has been reached.
func (f *Frontier) ShouldVisit(location string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[location]; ok {
		return false
	}
	if f.maxPages > 0 && len(f.visited) >= f.maxPages {
		return false
	}
	f.visited[location] = struct{}{}
	f.order = append(f.order, location)
	return true
}

// Visited returns the visited locations in the order they were marked.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// Expand returns the links of page that are new candidates, in document order.
// Links are resolved against base with their fragment removed, and kept only
// when they start with origin, do not end in a denied extension and have not
// been visited. Expand does not mark anything visited.
func (f *Frontier) Expand(page []byte, base *url.URL, origin string) []string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, a := range dom.GetElementsByTagName(doc, "a") {
		href := strings.TrimSpace(dom.GetAttribute(a, "href"))
		if href == "" {
			continue
		}
		loc, ok := Normalize(base, href)
		if !ok || !strings.HasPrefix(loc, origin) || f.isDenied(loc) {
			continue
		}
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		if f.isVisited(loc) {
			continue
		}
		out = append(out, loc)
	}
	return out
}

func (f *Frontier) isVisited(location string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[location]
	return ok
}

func (f *Frontier) isDenied(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return true
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return false
	}
	for _, d := range f.denied {
		if ext == d {
			return true
		}
	}
	return false
}

// Normalize resolves href against base and drops the fragment. Only http and
// https locations are accepted.
func Normalize(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// Origin returns scheme://host of a location.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
