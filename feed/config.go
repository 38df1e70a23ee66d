// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package feed

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/JarvusInnovations/transit-archiver/util/secret"
)

type ConfigError struct {
	Feed, Field string
	Reason      error
}

func (e ConfigError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("feed %q: invalid %s", e.Feed, e.Field)
	}
	return fmt.Sprintf("feed %q: invalid %s: %s", e.Feed, e.Field, e.Reason)
}

func (e ConfigError) Unwrap() error {
	return e.Reason
}

// KeyValue is one query or header parameter. The value is either given
// literally or named as an environment secret; secrets are resolved
// only when the request is issued, never when keys are derived.
type KeyValue struct {
	Key         string  `json:"key" yaml:"key"`
	Value       *string `json:"value" yaml:"value"`
	ValueSecret *string `json:"valueSecret" yaml:"valueSecret"`
}

func (kv KeyValue) IsSecret() bool {
	return kv.Value == nil && kv.ValueSecret != nil
}

func (kv KeyValue) Resolve() (string, error) {
	if kv.Value != nil {
		return *kv.Value, nil
	}
	if kv.ValueSecret != nil {
		return secret.FromEnvironment(*kv.ValueSecret)
	}
	return "", fmt.Errorf("parameter %q: neither value nor valueSecret set", kv.Key)
}

// KeyValues declares a paginated parameter: one fetch is emitted per
// value.
type KeyValues struct {
	Key    string   `json:"key" yaml:"key"`
	Values []string `json:"values" yaml:"values"`
}

// FeedConfig is one entry of feeds.yaml.
type FeedConfig struct {
	Name        string      `json:"name" yaml:"name"`
	URL         string      `json:"url" yaml:"url"`
	FeedType    FeedType    `json:"feed_type" yaml:"feed_type"`
	Agency      *string     `json:"agency" yaml:"agency"`
	Description *string     `json:"description" yaml:"description"`
	ScheduleURL *string     `json:"schedule_url" yaml:"schedule_url"`
	Query       []KeyValue  `json:"query" yaml:"query"`
	Headers     []KeyValue  `json:"headers" yaml:"headers"`
	Pages       []KeyValues `json:"pages" yaml:"pages"`
}

func (c FeedConfig) Validate() error {
	if c.Name == "" {
		return ConfigError{c.Name, "name", errors.New("must not be empty")}
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return ConfigError{c.Name, "url", err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ConfigError{c.Name, "url", errors.New("must be an absolute http(s) URL")}
	}

	if !c.FeedType.IsValid() {
		return ConfigError{c.Name, "feed_type", ErrUnknownFeedType(c.FeedType)}
	}

	for _, kv := range c.Query {
		if err := validateKeyValue(kv); err != nil {
			return ConfigError{c.Name, "query", err}
		}
	}
	for _, kv := range c.Headers {
		if err := validateKeyValue(kv); err != nil {
			return ConfigError{c.Name, "headers", err}
		}
	}
	for _, p := range c.Pages {
		if p.Key == "" {
			return ConfigError{c.Name, "pages", errors.New("key must not be empty")}
		}
	}

	return nil
}

func validateKeyValue(kv KeyValue) error {
	if kv.Key == "" {
		return errors.New("key must not be empty")
	}
	if kv.Value == nil && kv.ValueSecret == nil {
		return fmt.Errorf("parameter %q: one of value or valueSecret is required", kv.Key)
	}
	return nil
}

// normalize replaces nil slices with empty ones so the JSON envelope
// always carries [] rather than null.
func (c *FeedConfig) normalize() {
	if c.Query == nil {
		c.Query = []KeyValue{}
	}
	if c.Headers == nil {
		c.Headers = []KeyValue{}
	}
	if c.Pages == nil {
		c.Pages = []KeyValues{}
	}
}

// LoadConfigs reads and validates the feed registry. Unknown YAML
// fields are rejected.
func LoadConfigs(path string) ([]FeedConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var configs []FeedConfig
	if err := yaml.UnmarshalStrict(raw, &configs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		configs[i].normalize()
	}
	return configs, nil
}

// Expand yields the page parameter of every fetch a config calls for:
// a single empty page when the config is not paginated, otherwise one
// singleton page per declared value. Exactly one paginated dimension is
// supported; cross-products are not.
func Expand(c FeedConfig) ([][]KeyValue, error) {
	if len(c.Pages) == 0 {
		return [][]KeyValue{{}}, nil
	}
	if len(c.Pages) != 1 {
		return nil, ConfigError{c.Name, "pages", errors.New("only one paginated parameter is supported")}
	}

	pages := make([][]KeyValue, 0, len(c.Pages[0].Values))
	for _, v := range c.Pages[0].Values {
		pages = append(pages, []KeyValue{{Key: c.Pages[0].Key, Value: &v}})
	}
	return pages, nil
}
