// SPDX-License-Identifier: LGPL-3.0-or-later

package indexer

import (
	"encoding/hex"
	"fmt"
)

// hexDecodeAll decodes every hex string in values to UTF-8 text, in order.
func hexDecodeAll(values []string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		b, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decode hex value %d: %w", i, err)
		}
		out[i] = string(b)
	}
	return out, nil
}

// firstField decodes the single value stored under key, if present.
func firstField(m map[string][]string, key string) (string, bool) {
	vals, ok := m[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	decoded, err := hexDecodeAll(vals[:1])
	if err != nil {
		return "", false
	}
	return decoded[0], true
}

// listField decodes every value stored under key, in array order.
func listField(m map[string][]string, key string) []string {
	vals, ok := m[key]
	if !ok {
		return nil
	}
	decoded, err := hexDecodeAll(vals)
	if err != nil {
		return nil
	}
	return decoded
}
