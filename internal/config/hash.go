package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash deterministically fingerprints the configuration so the orchestrator
// can detect drift across resumes. It marshals through JSON (map keys are
// sorted by the encoder, giving a stable byte stream) and folds the bytes
// through SHA-256.
func (c *Config) Hash() (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
