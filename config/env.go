// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment values.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SubstituteEnvVarsInConfig recursively substitutes ${VAR} references that
// appear in string fields loaded from YAML.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.HTTP.PublicURL = SubstituteEnvVars(cfg.HTTP.PublicURL)
	cfg.HTTP.PlatformID = SubstituteEnvVars(cfg.HTTP.PlatformID)
	cfg.Chain.RPCURL = SubstituteEnvVars(cfg.Chain.RPCURL)
	cfg.Storage.Host = SubstituteEnvVars(cfg.Storage.Host)
	cfg.SafeChat.APIURL = SubstituteEnvVars(cfg.SafeChat.APIURL)
	cfg.SafeChat.LocalModulePath = SubstituteEnvVars(cfg.SafeChat.LocalModulePath)
}

// GetEnvironment returns the current environment from VAP_ENV/ENVIRONMENT.
func GetEnvironment() string {
	env := os.Getenv("VAP_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether the process is running in production.
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment reports whether the process is running in development/local.
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
