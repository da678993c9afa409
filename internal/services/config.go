// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package services

import (
	"errors"
	"time"
)

type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`

	EmailURL      string `mapstructure:"email_url"`
	BNURL         string `mapstructure:"bn_url"`
	CredentialURL string `mapstructure:"credential_url"`
	AuthURL       string `mapstructure:"auth_url"`
	CorpURL       string `mapstructure:"corp_url"`

	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// TokenRefreshMargin is subtracted from a token's lifetime so it is
	// replaced before the issuer starts rejecting it.
	TokenRefreshMargin time.Duration `mapstructure:"token_refresh_margin"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:            20 * time.Second,
		TokenRefreshMargin: 30 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("services timeout must be positive")
	}
	if c.TokenURL != "" && (c.ClientID == "" || c.ClientSecret == "") {
		return errors.New("services client_id and client_secret are required with token_url")
	}
	return nil
}
