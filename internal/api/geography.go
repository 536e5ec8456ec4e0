package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"mechconnect/internal/geography"
)

var _ geography.Fetcher = (*Client)(nil)

// Children implements geography.Fetcher against the geography service:
//
//	GET /regions
//	GET /regions/{code}/provinces
//	GET /provinces/{code}/cities-municipalities
//	GET /cities-municipalities/{code}/barangays
func (c *Client) Children(ctx context.Context, level geography.Level, parentCode string) ([]geography.Unit, error) {
	path, err := geographyPath(level, parentCode)
	if err != nil {
		return nil, err
	}

	res, err := c.do(ctx, http.MethodGet, c.geographyURL(path), nil)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, errorFromResponse(res)
	}

	var units []geography.Unit
	if err := json.Unmarshal(res.body, &units); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", level, err)
	}
	return units, nil
}

func geographyPath(level geography.Level, parentCode string) (string, error) {
	if level == geography.Region {
		return "/regions", nil
	}
	if parentCode == "" {
		return "", geography.ErrMissingParent
	}

	parent := url.PathEscape(parentCode)
	switch level {
	case geography.Province:
		return "/regions/" + parent + "/provinces", nil
	case geography.City:
		return "/provinces/" + parent + "/cities-municipalities", nil
	case geography.Barangay:
		return "/cities-municipalities/" + parent + "/barangays", nil
	}
	return "", fmt.Errorf("unsupported geography level %s", level)
}
