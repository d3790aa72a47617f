// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/cinecord/internal/validation"
)

// Validate checks field constraints declared in struct tags, then the
// cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := validateHTTPURL(c.Trakt.BaseURL, "trakt.base_url"); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	return c.validateTracing()
}

func (c *Config) validateSync() error {
	// A request outliving the tick would overlap the next poll.
	if c.Trakt.Timeout >= c.Sync.Interval {
		return fmt.Errorf("trakt.timeout (%s) must be shorter than sync.interval (%s)",
			c.Trakt.Timeout, c.Sync.Interval)
	}
	return nil
}

func (c *Config) validateTracing() error {
	if !c.Tracing.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Tracing.Endpoint) == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return validateHostPort(c.Tracing.Endpoint, "tracing.endpoint")
}

