package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/chat-scribe/crypto"
)

const (
	cookiesKey    = "session_cookies"
	cookiesEncKey = "session_cookies_encrypted"
	encryptedFlag = "1"
	plaintextFlag = "0"
)

// SaveSessionCookies stores a cookie snapshot (JSON produced by the browser
// layer) in the kv table. When ENCRYPTION_KEY is configured the snapshot is
// encrypted with AES-256-GCM before storage; a companion kv flag records which
// form was written so mixed deployments read back correctly.
func SaveSessionCookies(ctx context.Context, dbx *sql.DB, cookiesJSON string) error {
	enc, err := getEncryptor()
	if err != nil {
		return fmt.Errorf("get encryptor: %w", err)
	}

	toStore := cookiesJSON
	flag := plaintextFlag
	if enc != nil {
		ct, err := crypto.EncryptString(enc, cookiesJSON)
		if err != nil {
			return fmt.Errorf("encrypt cookies: %w", err)
		}
		toStore = ct
		flag = encryptedFlag
	}

	if err := SetKV(ctx, dbx, cookiesKey, toStore); err != nil {
		return fmt.Errorf("store cookies: %w", err)
	}
	return SetKV(ctx, dbx, cookiesEncKey, flag)
}

// LoadSessionCookies returns the stored cookie snapshot, decrypting it when it
// was written encrypted. Returns "" when no snapshot has been saved yet.
func LoadSessionCookies(ctx context.Context, dbx *sql.DB) (string, error) {
	stored, err := GetKV(ctx, dbx, cookiesKey)
	if err != nil {
		return "", fmt.Errorf("load cookies: %w", err)
	}
	if stored == "" {
		return "", nil
	}

	flag, err := GetKV(ctx, dbx, cookiesEncKey)
	if err != nil {
		return "", fmt.Errorf("load cookies flag: %w", err)
	}
	if flag != encryptedFlag {
		return stored, nil
	}

	enc, err := getEncryptor()
	if err != nil {
		return "", fmt.Errorf("get encryptor: %w", err)
	}
	if enc == nil {
		return "", fmt.Errorf("cookies are encrypted but ENCRYPTION_KEY is not configured")
	}
	return crypto.DecryptString(enc, stored)
}
