package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-querystring/query"

	"github.com/subgrab/subgrab/internal/models"
)

// Search forwards params to GET /subtitles. Successful bodies are memoized in
// the search cache under the encoded query string.
func (c *client) Search(ctx context.Context, params models.SearchParams) ([]byte, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query parameters: %w", err)
	}
	key := "search:" + values.Encode()

	if c.searchCache != nil {
		if cached, ok := c.searchCache.Get(key); ok {
			c.logger.Debug().Str("key", key).Msg("Search served from cache")
			return cached, nil
		}
	}

	body, _, err := c.execute(ctx, call{
		operation: "Search",
		method:    http.MethodGet,
		target:    c.baseURL + "/subtitles",
		query:     values,
		provider:  true,
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("search returned a body that is not valid JSON")
	}

	if c.searchCache != nil {
		c.searchCache.Set(key, body)
	}
	return body, nil
}
