package cryptoutils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// IdentityData is a flat JSON object of identity fields.
type IdentityData map[string]any

// ParseIdentityData decodes a JSON object. Numbers are kept as json.Number
// so they re-serialize unchanged.
func ParseIdentityData(data []byte) (IdentityData, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var record IdentityData
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("identity data is not a JSON object: %w", err)
	}
	if record == nil {
		return nil, errors.New("identity data is not a JSON object")
	}
	return record, nil
}

// Marshal serializes the record with keys in sorted order.
func (d IdentityData) Marshal() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}

// Keys returns the field names in sorted order.
func (d IdentityData) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SelectFields returns the subset of record named by allowed. Names absent
// from record are skipped.
func SelectFields(record IdentityData, allowed []string) IdentityData {
	selected := make(IdentityData, len(allowed))
	for _, field := range allowed {
		if value, ok := record[field]; ok {
			selected[field] = value
		}
	}
	return selected
}

// SelectAndEncrypt filters record to allowed and seals the deterministic
// serialization for recipientPublicKey.
func SelectAndEncrypt(recipientPublicKey string, record IdentityData, allowed []string) (*EncryptedPayload, error) {
	plaintext, err := SelectFields(record, allowed).Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize selected fields: %w", err)
	}
	return Encrypt(recipientPublicKey, plaintext)
}
