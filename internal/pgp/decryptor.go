// Package pgp provides the decryption capability consumed by the intake
// pipeline. The pipeline only sees the Decryptor interface; this
// implementation uses gopenpgp with a locally held private key.
package pgp

import (
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/gopenpgp/v2/helper"
)

// Decryptor turns a PGP-armored message into plaintext.
type Decryptor interface {
	Decrypt(armored string) (string, error)
}

// KeyringDecryptor decrypts with a single armored private key.
type KeyringDecryptor struct {
	privateKey string
	passphrase []byte
}

// NewKeyringDecryptor loads the armored private key from keyPath.
func NewKeyringDecryptor(keyPath, passphrase string) (*KeyringDecryptor, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PGP private key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if !strings.Contains(key, "PRIVATE KEY BLOCK") {
		return nil, fmt.Errorf("file %s does not contain an armored PGP private key", keyPath)
	}

	d := &KeyringDecryptor{privateKey: key}
	if passphrase != "" {
		d.passphrase = []byte(passphrase)
	}
	return d, nil
}

// Decrypt returns the plaintext of an armored message, or an error when the
// message is not armored or was not encrypted to our key.
func (d *KeyringDecryptor) Decrypt(armored string) (string, error) {
	armored = strings.TrimSpace(armored)
	if !strings.HasPrefix(armored, "-----BEGIN PGP MESSAGE-----") {
		return "", fmt.Errorf("input is not a PGP-armored message")
	}

	plaintext, err := helper.DecryptMessageArmored(d.privateKey, d.passphrase, armored)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
