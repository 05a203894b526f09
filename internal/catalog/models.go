// Package catalog provides a client for a STAC item search API, wrapping
// planetlabs/go-stac for the item model.
package catalog

import (
	"fmt"
	"net/url"

	gostac "github.com/planetlabs/go-stac"
)

// Item is a STAC item returned by the catalog.
type Item = gostac.Item

// SearchQuery is the body of a STAC POST /search request.
type SearchQuery struct {
	Collections []string  `json:"collections,omitempty"`
	BBox        []float64 `json:"bbox,omitempty"`
	// Datetime is an RFC 3339 interval, e.g. "2023-01-01T00:00:00Z/2023-12-31T23:59:59Z".
	Datetime string `json:"datetime,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Token    string `json:"token,omitempty"`
}

// YearRangeDatetime returns the search interval covering the inclusive year
// range [minYear, maxYear].
func YearRangeDatetime(minYear, maxYear int) string {
	return fmt.Sprintf("%04d-01-01T00:00:00Z/%04d-12-31T23:59:59Z", minYear, maxYear)
}

// Page is one page of search results: a STAC ItemCollection with
// pagination links.
type Page struct {
	Type           string         `json:"type"` // "FeatureCollection"
	Features       []*gostac.Item `json:"features"`
	Links          []*gostac.Link `json:"links"`
	NumberReturned int            `json:"numberReturned"`
}

// NextToken extracts the pagination token from the page's "next" link.
// Returns "" when there are no further pages.
func (p *Page) NextToken() string {
	for _, link := range p.Links {
		if link == nil || link.Rel != "next" {
			continue
		}
		u, err := url.Parse(link.Href)
		if err != nil {
			continue
		}
		if token := u.Query().Get("token"); token != "" {
			return token
		}
	}
	return ""
}
