package signalr

import (
	"net/url"
	"strings"
)

// buildNegotiateURL appends /negotiate to the base URL and adds
// negotiateVersion=1, keeping any query string already present.
func buildNegotiateURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/negotiate"
	u.RawQuery = appendQuery(u.RawQuery, "negotiateVersion=1")
	return u.String(), nil
}

// buildConnectURL rewrites the scheme for WebSockets (http to ws, https to
// wss) and appends id=<connectionToken> to the query string. An empty token
// (skip-negotiation mode) leaves the query untouched.
func buildConnectURL(baseURL, connectionToken string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	if connectionToken != "" {
		u.RawQuery = appendQuery(u.RawQuery, "id="+url.QueryEscape(connectionToken))
	}
	return u.String(), nil
}

// extractQuery returns the raw query string of rawURL, or "" when the URL
// has none or does not parse.
func extractQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.RawQuery
}

// mergeQueryString appends a raw query string onto rawURL.
func mergeQueryString(rawURL, query string) (string, error) {
	if query == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = appendQuery(u.RawQuery, query)
	return u.String(), nil
}

func appendQuery(rawQuery, pair string) string {
	if rawQuery == "" {
		return pair
	}
	return rawQuery + "&" + pair
}
