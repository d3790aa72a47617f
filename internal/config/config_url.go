// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package config

import (
	"fmt"
	"net"
	"net/url"
)

// validateHTTPURL checks that rawURL is an http(s) base URL without path or query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// validateHostPort checks an OTLP endpoint of the form host:port.
func validateHostPort(hostport, fieldName string) error {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return fmt.Errorf("%s must be host:port: %w", fieldName, err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("%s must be host:port, got %q", fieldName, hostport)
	}
	return nil
}
