package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ---- token store ----

type tokenFile struct {
	Server      string    `json:"server"`
	Username    string    `json:"username"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

var errNoSession = errors.New("not logged in (run: portal login -u <user> -p <password>)")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "docportal")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "docportal")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

// loadToken returns the stored session. An expired session is removed.
func loadToken(now time.Time) (tokenFile, error) {
	b, err := os.ReadFile(tokenPath())
	if errors.Is(err, fs.ErrNotExist) {
		return tokenFile{}, errNoSession
	}
	if err != nil {
		return tokenFile{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, err
	}
	if tf.AccessToken == "" {
		return tokenFile{}, errNoSession
	}
	if !tf.ExpiresAt.IsZero() && now.After(tf.ExpiresAt) {
		_ = clearToken()
		return tokenFile{}, errSessionExpired
	}
	return tf, nil
}

func clearToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
