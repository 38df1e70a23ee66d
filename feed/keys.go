// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

package feed

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/JarvusInnovations/transit-archiver/util/time2"
)

// requestURL builds the request URL for a config plus page. Secret
// parameters are resolved only when resolveSecrets is set; otherwise
// they are left out entirely, so derived keys never embed secret
// material. Values.Encode sorts by key, which keeps the result stable
// under reordering of the config's query list.
func requestURL(c FeedConfig, page []KeyValue, resolveSecrets bool) (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", ConfigError{c.Name, "url", err}
	}

	q := u.Query()
	params := make([]KeyValue, 0, len(c.Query)+len(page))
	params = append(params, c.Query...)
	params = append(params, page...)
	for _, kv := range params {
		switch {
		case kv.Value != nil:
			q.Add(kv.Key, *kv.Value)
		case resolveSecrets && kv.ValueSecret != nil:
			value, err := kv.Resolve()
			if err != nil {
				return "", err
			}
			q.Add(kv.Key, value)
		}
	}

	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// FetchURL is the URL the worker actually requests, secrets included.
func FetchURL(c FeedConfig, page []KeyValue) (string, error) {
	return requestURL(c, page, true)
}

// Fingerprint is the base64url grouping key: the request URL without
// secrets and without page parameters, so all pages of a feed share it.
func Fingerprint(c FeedConfig) (string, error) {
	u, err := requestURL(c, nil, false)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString([]byte(u)), nil
}

// PageFilename is the artifact file name: the request URL with page
// parameters but without secrets, base64url-encoded, suffixed .json.
func PageFilename(c FeedConfig, page []KeyValue) (string, error) {
	u, err := requestURL(c, page, false)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString([]byte(u)) + ".json", nil
}

// RawKey is the storage key of one raw snapshot.
func RawKey(c FeedConfig, ts time2.Time, page []KeyValue) (string, error) {
	fingerprint, err := Fingerprint(c)
	if err != nil {
		return "", err
	}
	filename, err := PageFilename(c, page)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/dt=%s/hour=%s/ts=%s/base64url=%s/%s",
		c.FeedType.TableName(), ts.DateString(), ts.TruncateHour(), ts, fingerprint, filename), nil
}

// AggKey is the storage key of one hourly aggregation.
func AggKey(table Table, base64url string, hour time2.Time) string {
	return fmt.Sprintf("%s/dt=%s/hour=%s/%s.jsonl.gz", table.TableName(), hour.DateString(), hour, base64url)
}

// OutcomesKey is the storage key of the parse-outcomes ledger for one
// feed over one hour.
func OutcomesKey(ft FeedType, hour time2.Time) string {
	return fmt.Sprintf("%s__parse_outcomes/dt=%s/%s.jsonl", ft, hour.DateString(), hour)
}
