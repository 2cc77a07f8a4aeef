package capture

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrCrossOrigin = errors.New("cross-origin image not allowed")

// CheckAssets enforces the cross-origin policy before anything is rendered.
// data: URIs and relative references are always allowed.
func CheckAssets(s Surface, opts Options) error {
	if opts.AllowCrossOriginImages {
		return nil
	}
	base, err := originOf(s.BaseURL)
	if err != nil {
		return captureErr("policy", fmt.Errorf("base url: %w", err))
	}
	for _, asset := range s.Assets {
		asset = strings.TrimSpace(asset)
		if asset == "" || strings.HasPrefix(strings.ToLower(asset), "data:") {
			continue
		}
		u, err := url.Parse(asset)
		if err != nil {
			return captureErr("policy", fmt.Errorf("asset %q: %w", asset, err))
		}
		if !u.IsAbs() {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		o, _ := originOf(asset)
		if o != base {
			return captureErr("policy", fmt.Errorf("%w: %s", ErrCrossOrigin, asset))
		}
	}
	return nil
}

// originOf returns scheme://host[:port] with default ports removed.
// An empty base has an empty origin, so every absolute asset is then cross-origin.
func originOf(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}
