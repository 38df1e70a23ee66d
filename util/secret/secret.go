// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package secret

import (
	"fmt"
	"os"
	"strings"
)

type MissingEnvironmentKey string

func (k MissingEnvironmentKey) Error() string {
	return fmt.Sprintf("%s environment variable not set", string(k))
}

// FromEnvironment resolves a required value from the environment,
// falling back to reading the file named by key_FILE. This keeps API
// keys and bucket names out of process listings in deployments that
// mount secrets as files.
func FromEnvironment(key string) (string, error) {
	value := os.Getenv(key)
	path := os.Getenv(key + "_FILE")
	if value == "" && path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		value = string(content)
	}

	if value == "" {
		return "", MissingEnvironmentKey(key)
	}
	return strings.TrimSpace(value), nil
}

// Optional is FromEnvironment with a fallback instead of an error.
func Optional(key, fallback string) string {
	value, err := FromEnvironment(key)
	if err != nil {
		return fallback
	}
	return value
}
