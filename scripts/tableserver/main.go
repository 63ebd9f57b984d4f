package main

// tableserver serves fixture pages shaped like the acquisition targets, so
// chartfetch can be exercised end to end without touching the live sites:
//
//	go run ./scripts/tableserver -addr :8090 -flaky 2
//
//	CHARTFETCH_VGCHARTZ_CONSOLES_URL=http://localhost:8090/consoles \
//	  go run ./cmd/chartfetch vgchartz-consoles
//
// With -flaky N every path serves N 503s before the real page, which walks
// the retry loop through its failure branches.

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
)

// CLI flags
var (
	addr  = flag.String("addr", ":8090", "listen address")
	flaky = flag.Int("flaky", 0, "number of 503s to serve per path before succeeding")
)

func main() {
	flag.Parse()

	srv := &fixtureServer{hits: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/games", srv.page(gamesPage))
	mux.HandleFunc("/consoles", srv.page(consolesPage))
	mux.HandleFunc("/scores", srv.page(scoresPage))
	mux.HandleFunc("/empty", srv.page(emptyPage))

	log.Printf("tableserver listening on %s (flaky=%d)", *addr, *flaky)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

type fixtureServer struct {
	mu   sync.Mutex
	hits map[string]int
}

// page wraps a fixture body with the flaky counter.
func (s *fixtureServer) page(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		n := s.hits[r.URL.Path]
		s.mu.Unlock()

		if n <= *flaky {
			log.Printf("%s hit %d -> 503", r.URL.Path, n)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		log.Printf("%s hit %d -> 200", r.URL.Path, n)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

const gamesPage = `<!DOCTYPE html>
<html><head><title>Game Sales Chart</title></head><body>
<div id="ad-banner">sponsored</div>
<table class="chart">
<tr><th>Pos</th><th>Game</th><th>Console</th><th>Publisher</th><th>Developer</th><th>Total Sales</th><th>Release Date</th></tr>
<tr><td>1</td><td>Mario Kart 8 Deluxe</td><td>NS</td><td>Nintendo</td><td>Nintendo EAD</td><td>64.27</td><td>28th Apr 17</td></tr>
<tr><td>2</td><td>Animal Crossing: New Horizons</td><td>NS</td><td>Nintendo</td><td>Nintendo EAD</td><td>47.44</td><td>20th Mar 20</td></tr>
<tr><td>3</td><td>Super Smash Bros. Ultimate</td><td>NS</td><td>Nintendo</td><td>Bandai Namco Games</td><td>36.15</td><td>07th Dec 18</td></tr>
<tr><td colspan="2">totals unavailable</td></tr>
</table>
</body></html>
`

const consolesPage = `<!DOCTYPE html>
<html><head><title>Platform Totals</title></head><body>
<table class="chart">
<tr><th>Pos</th><th>Platform</th><th>North America</th><th>Europe</th><th>Japan</th><th>Rest of World</th><th>Global</th></tr>
<tr><td>1</td><td>PlayStation 2</td><td>53.65</td><td>55.28</td><td>23.18</td><td>25.57</td><td>157.68</td></tr>
<tr><td>2</td><td>Nintendo DS</td><td>57.92</td><td>52.06</td><td>32.99</td><td>11.05</td><td>154.02</td></tr>
<tr><td>3</td><td>Nintendo Switch</td><td>46.60</td><td>34.93</td><td>32.70</td><td>29.67</td><td>143.90</td></tr>
<tr><td>4</td><td>Game Boy</td><td>43.18</td><td>40.05</td><td>32.47</td><td>2.99</td><td>118.69</td></tr>
<tr><td>5</td><td>Wii</td><td>45.51</td><td>33.12</td><td>12.77</td><td>10.17</td><td>101.57</td></tr>
</table>
</body></html>
`

const scoresPage = `<!DOCTYPE html>
<html><head><title>Best Games</title></head><body>
<div class="c-productList">
  <div class="c-productListItem">
    <span class="c-productListItem_title">The Legend of Zelda: Breath of the Wild</span>
    <span class="c-siteReviewScore">97</span>
    <span class="c-productListItem_date">Mar 3, 2017</span>
  </div>
  <div class="c-productListItem">
    <span class="c-productListItem_title">Super Mario Odyssey</span>
    <span class="c-siteReviewScore">97</span>
    <span class="c-productListItem_date">Oct 27, 2017</span>
  </div>
  <div class="c-productListItem">
    <span class="c-productListItem_title">Unreleased Placeholder</span>
  </div>
</div>
</body></html>
`

const emptyPage = `<!DOCTYPE html>
<html><head><title>Nothing Here</title></head><body>
<p>chart temporarily unavailable</p>
</body></html>
`
