package main

import "net/url"

// redactedURL hides credentials in connection strings before they are logged.
func redactedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
