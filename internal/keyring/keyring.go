// Package keyring stores the session token in the system credential store.
package keyring

import (
	"os"

	gokeyring "github.com/zalando/go-keyring"
)

const (
	service   = "drift"
	tokenUser = "session_token"
)

// GetToken returns the session token from the DRIFT_TOKEN env var, falling
// back to the system keyring.
func GetToken() (string, error) {
	if v := os.Getenv("DRIFT_TOKEN"); v != "" {
		return v, nil
	}
	return gokeyring.Get(service, tokenUser)
}

// SetToken stores the session token in the system keyring.
func SetToken(token string) error {
	return gokeyring.Set(service, tokenUser, token)
}

// DeleteToken removes the session token from the system keyring.
func DeleteToken() error {
	return gokeyring.Delete(service, tokenUser)
}
