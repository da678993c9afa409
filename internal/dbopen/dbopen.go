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

// Package dbopen opens the two PostgreSQL pools a filingrunner process may
// need: the read-write ledger and the read-only system of record.
package dbopen

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var ErrDatabaseNotConfigured = errors.New("database connection configuration is unavailable")

// settings are the connection parts read from PREFIX_* variables.
type settings struct {
	url      string
	host     string
	port     string
	user     string
	password string
	dbname   string
	sslmode  string
}

func readSettings(prefix string) settings {
	prefix = strings.TrimSuffix(prefix, "_") + "_"
	get := func(k string) string { return os.Getenv(prefix + k) }
	return settings{
		url:      get("URL"),
		host:     get("HOST"),
		port:     get("PORT"),
		user:     get("USER"),
		password: get("PASSWORD"),
		dbname:   get("DBNAME"),
		sslmode:  get("SSLMODE"),
	}
}

func (s settings) connString(prefix, service string) (string, error) {
	if s.url != "" {
		return s.url, nil
	}

	var missing []string
	if s.host == "" {
		missing = append(missing, prefix+"HOST")
	}
	if s.dbname == "" {
		missing = append(missing, prefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	port := s.port
	if port == "" {
		port = "5432"
	}
	u := url.URL{Scheme: "postgresql", Host: s.host + ":" + port, Path: s.dbname}
	switch {
	case s.user != "" && s.password != "":
		u.User = url.UserPassword(s.user, s.password)
	case s.user != "":
		u.User = url.User(s.user)
	}

	q := url.Values{}
	if s.sslmode != "" {
		q.Set("sslmode", s.sslmode)
	}
	if name := applicationName(service); name != "" {
		q.Set("application_name", name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// GetDatabaseURLFromEnv returns PREFIX_URL if set, otherwise a URL assembled
// from PREFIX_HOST, PREFIX_PORT, PREFIX_USER, PREFIX_PASSWORD, PREFIX_DBNAME
// and PREFIX_SSLMODE. HOST and DBNAME are required.
func GetDatabaseURLFromEnv(prefix string) (string, error) {
	p := strings.TrimSuffix(prefix, "_") + "_"
	return readSettings(prefix).connString(p, os.Getenv("OTEL_SERVICE_NAME"))
}

var appNameInvalid = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// applicationName makes a service name acceptable as a postgres
// application_name, which is capped at 63 bytes.
func applicationName(name string) string {
	name = appNameInvalid.ReplaceAllString(name, "_")
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}
