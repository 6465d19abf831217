package research

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// GoogleSearcher searches through a Google Programmable Search engine.
// Results carry a rank-derived score since the API returns none.
type GoogleSearcher struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogleSearcher creates a searcher for engine cx.
func NewGoogleSearcher(ctx context.Context, apiKey, cx string) (*GoogleSearcher, error) {
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleSearcher{svc: svc, cx: cx}, nil
}

// Available implements Searcher.
func (g *GoogleSearcher) Available() bool {
	return g != nil && g.svc != nil && g.cx != ""
}

// Search implements Searcher.
func (g *GoogleSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 10
	}
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(maxResults)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for i, item := range resp.Items {
		results = append(results, Result{
			Title:   cleanText(item.Title),
			URL:     item.Link,
			Content: cleanText(item.Snippet),
			Score:   1 - float64(i)/float64(len(resp.Items)+1),
		})
	}
	return results, nil
}
