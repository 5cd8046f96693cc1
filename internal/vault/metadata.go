package vault

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// IdentityMetadata describes one stored identity (real or decoy). It is
// the only plaintext record in the vault: everything in it is needed
// before the keystore can be exercised (which comparator to run, which
// key alias to address), and none of it is secret material.
type IdentityMetadata struct {
	// Version is the metadata record version.
	Version int `json:"version"`

	// Strategy is the matching strategy tag ("interval" or "grid").
	Strategy string `json:"strategy"`

	// KeyAlias addresses the identity's key in the secure key store.
	KeyAlias string `json:"key_alias"`

	// AlgorithmVersion is the landmark-field generator version in use
	// when the identity was registered (grid strategy only).
	AlgorithmVersion int `json:"algorithm_version,omitempty"`

	// VerificationHash is the hex landmark-field verification hash
	// (grid strategy only).
	VerificationHash string `json:"verification_hash,omitempty"`

	// CreatedAt is the registration time in Unix seconds.
	CreatedAt int64 `json:"created_at"`

	// NeedsEnrollment marks an identity restored from a recovery phrase
	// that has no gesture template yet.
	NeedsEnrollment bool `json:"needs_enrollment,omitempty"`
}

// MetadataVersion is the current metadata record version.
const MetadataVersion = 1

const metadataSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "key_alias", "created_at"],
  "properties": {
    "version":            {"type": "integer", "minimum": 1},
    "strategy":           {"type": "string", "enum": ["", "interval", "grid"]},
    "key_alias":          {"type": "string", "minLength": 1},
    "algorithm_version":  {"type": "integer", "minimum": 0},
    "verification_hash":  {"type": "string", "pattern": "^[0-9a-f]*$"},
    "created_at":         {"type": "integer", "minimum": 0},
    "needs_enrollment":   {"type": "boolean"}
  },
  "additionalProperties": false
}`

var compiledMetadataSchema = jsonschema.MustCompileString("identity-metadata.json", metadataSchema)

// Encode serializes the metadata record.
func (m *IdentityMetadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMetadata parses and schema-validates a metadata record. A record
// that fails validation is treated as corrupt rather than silently
// half-read.
func DecodeMetadata(data []byte) (*IdentityMetadata, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("vault: parse metadata: %w", err)
	}
	if err := compiledMetadataSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("vault: invalid metadata: %w", err)
	}

	var m IdentityMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("vault: parse metadata: %w", err)
	}
	return &m, nil
}
