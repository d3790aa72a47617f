// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package validation

import (
	"errors"
	"strings"
	"testing"
)

type innerSection struct {
	AppID string `koanf:"app_id" validate:"required,snowflake"`
}

type testConfig struct {
	Discord  innerSection `koanf:"discord"`
	Username string       `koanf:"username" validate:"required,slug"`
	Mode     string       `koanf:"mode" validate:"oneof=close activity"`
	Port     int          `koanf:"port" validate:"gte=1,lte=65535"`
}

func validConfig() testConfig {
	return testConfig{
		Discord:  innerSection{AppID: "1014562385624555555"},
		Username: "movie-fan",
		Mode:     "close",
		Port:     8787,
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStructValid(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := ValidateStruct(&cfg); err != nil {
		t.Fatalf("ValidateStruct() error = %v", err)
	}
}

func TestValidateStructErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*testConfig)
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing app id",
			mutate:    func(c *testConfig) { c.Discord.AppID = "" },
			wantField: "discord.app_id",
			wantMsg:   "discord.app_id is required",
		},
		{
			name:      "non numeric app id",
			mutate:    func(c *testConfig) { c.Discord.AppID = "my-app" },
			wantField: "discord.app_id",
			wantMsg:   "Discord application ID",
		},
		{
			name:      "bad slug",
			mutate:    func(c *testConfig) { c.Username = "Movie Fan" },
			wantField: "username",
			wantMsg:   "lowercase letters",
		},
		{
			name:      "bad enum",
			mutate:    func(c *testConfig) { c.Mode = "blank" },
			wantField: "mode",
			wantMsg:   "mode must be one of: close activity",
		},
		{
			name:      "port range",
			mutate:    func(c *testConfig) { c.Port = 0 },
			wantField: "port",
			wantMsg:   "port must be greater than or equal to 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			err := ValidateStruct(&cfg)
			var verrs Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected Errors, got %T (%v)", err, err)
			}
			if len(verrs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(verrs), verrs)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verrs[0].Field, tt.wantField)
			}
			if !strings.Contains(verrs[0].Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", verrs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestErrorsJoinsMessages(t *testing.T) {
	t.Parallel()

	errs := Errors{{Message: "a is required"}, {Message: "b is required"}}
	if got := errs.Error(); got != "a is required; b is required" {
		t.Errorf("Error() = %q", got)
	}
	if got := (Errors{}).Error(); got != "validation failed" {
		t.Errorf("empty Error() = %q", got)
	}
}
