package ruleset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML rule set, validates it and returns it with the raw bytes
// ⭐ SSOT: KnownFields(true) fails fast on typos and unused fields
func Load(path string) (*RuleSet, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rule set: %w", err)
	}

	rs, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return rs, data, nil
}

// Parse decodes and validates a YAML rule set
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}

	if err := Validate(&rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Hash generates a SHA-256 hash of the rule set (canonical JSON).
// Structs keep field order fixed and encoding/json sorts map keys,
// so equal rule sets always hash equal.
func Hash(rs *RuleSet) (string, error) {
	jsonBytes, err := json.Marshal(rs)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Clone returns a deep copy
func (rs *RuleSet) Clone() (*RuleSet, error) {
	data, err := json.Marshal(rs)
	if err != nil {
		return nil, err
	}
	var out RuleSet
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
