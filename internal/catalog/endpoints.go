package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrNoEndpoint = errors.New("no endpoint for year")

	yearPattern = regexp.MustCompile(`2[0-9]{3}`)
)

// Endpoints maps a year to the URL of its rides archive.
type Endpoints map[int]string

func (e Endpoints) Lookup(year int) (string, error) {
	u, ok := e[year]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNoEndpoint, year)
	}
	return u, nil
}

func (e Endpoints) Years() []int {
	years := make([]int, 0, len(e))
	for y := range e {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// DiscoverEndpoints scrapes the catalog page for yearly archive links.
func (c *Client) DiscoverEndpoints(ctx context.Context, pageURL string) (Endpoints, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	body, err := c.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	endpoints, err := ParseEndpoints(base, bytes.NewReader(body), c.cfg.CatalogAnchorSelector, c.cfg.CatalogStorageDomain)
	if err != nil {
		return nil, err
	}
	c.logger.Info("catalog endpoints discovered", "count", len(endpoints), "years", endpoints.Years())
	return endpoints, nil
}

// ParseEndpoints reads anchors matching selector whose href contains domain
// and takes the year from the last path segment. Links without a year are
// skipped; a later link for the same year replaces an earlier one.
func ParseEndpoints(base *url.URL, page io.Reader, selector, domain string) (Endpoints, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	out := Endpoints{}
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || !strings.Contains(href, domain) {
			return
		}
		link, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		match := yearPattern.FindString(path.Base(link.Path))
		if match == "" {
			return
		}
		year, err := strconv.Atoi(match)
		if err != nil {
			return
		}
		out[year] = link.String()
	})

	return out, nil
}
