package doctolib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Reference motive ids of the public covid vaccination campaign, used to
// scope center searches to vaccination centers.
var vaccinationMotiveRefs = []string{"6970", "7005"}

const vaccinationSpecialityID = "5494"

// FindCenters discovers the vaccination centers of a city. Every search
// result is returned, including ones whose teaser shows no availability:
// teasers lag behind the live agenda, so each center gets a real attempt.
func (c *Client) FindCenters(ctx context.Context, city string) ([]Center, error) {
	params := url.Values{}
	for _, ref := range vaccinationMotiveRefs {
		params.Add("ref_visit_motive_ids[]", ref)
	}

	page, err := c.get(ctx, "/vaccination-covid-19/"+url.PathEscape(city), params)
	if err != nil {
		return nil, fmt.Errorf("find centers: %w", err)
	}

	ids, err := parseSearchResultIDs(page)
	if err != nil {
		return nil, fmt.Errorf("find centers: %w", err)
	}

	centers := make([]Center, 0, len(ids))
	for _, id := range ids {
		center, err := c.getSearchResult(ctx, id)
		if err != nil {
			c.logger.Warn("skipping unreadable search result", "id", id, "error", err)
			continue
		}
		centers = append(centers, *center)
	}

	c.logger.Info("centers discovered", "city", city, "count", len(centers))
	return centers, nil
}

func (c *Client) getSearchResult(ctx context.Context, id int) (*Center, error) {
	params := url.Values{}
	params.Set("limit", "4")
	for _, ref := range vaccinationMotiveRefs {
		params.Add("ref_visit_motive_ids[]", ref)
	}
	params.Set("speciality_id", vaccinationSpecialityID)
	params.Set("search_result_format", "json")

	var wrapped struct {
		SearchResult Center `json:"search_result"`
	}
	endpoint := "/search_results/" + strconv.Itoa(id) + ".json?" + params.Encode()
	if err := c.doJSON(ctx, "GET", endpoint, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get search result: %w", err)
	}
	return &wrapped.SearchResult, nil
}

// parseSearchResultIDs extracts the search result ids embedded in the
// calendar widgets of the centers page.
func parseSearchResultIDs(page []byte) ([]int, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse centers page: %w", err)
	}

	var ids []int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "js-dl-search-results-calendar") {
			if props := attrValue(n, "data-props"); props != "" {
				var data struct {
					SearchResultID int `json:"searchResultId"`
				}
				if err := json.Unmarshal([]byte(props), &data); err == nil && data.SearchResultID != 0 {
					ids = append(ids, data.SearchResultID)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return ids, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attrValue(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// Slug returns the center's booking identifier, the last segment of its
// canonical URL.
func (c Center) Slug() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}
