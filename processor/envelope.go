package processor

import (
	"encoding/json"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
)

// Envelope is the frame log producers publish: the name of the service
// that emitted the line and the raw line itself.
type Envelope struct {
	Name string `json:"name"`
	Log  string `json:"log"`
}

// Decryptor verifies and decrypts fernet tokens carrying record payloads.
// Every failure it returns is invalid-classified: a token that does not
// verify can never be recovered by retrying, so callers drop the record.
type Decryptor struct {
	keys []*fernet.Key
	ttl  time.Duration
}

// NewDecryptor loads the cipher keys named by the pipeline config. The key
// file holds one base64 fernet key per line; listing several keys lets
// producers rotate keys without dropping records signed by the old one.
func NewDecryptor(cfg config.PipelineConfig) (*Decryptor, error) {
	lines, err := config.ReadSecretLines(cfg.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "Decryptor", "NewDecryptor", "read key file")
	}
	keys, err := fernet.DecodeKeys(lines...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Decryptor", "NewDecryptor", "decode cipher keys")
	}
	ttl := cfg.TokenTTL()
	if ttl <= 0 {
		ttl = -1 // fernet skips the age check for negative values
	}
	return &Decryptor{keys: keys, ttl: ttl}, nil
}

// Decrypt verifies the token against the loaded keys and returns the
// plaintext payload. Leaving the token TTL unconfigured disables the
// token-age check.
func (d *Decryptor) Decrypt(token []byte) ([]byte, error) {
	plaintext := fernet.VerifyAndDecrypt(token, d.ttl, d.keys)
	if plaintext == nil {
		return nil, errors.WrapInvalid(errors.ErrDecryptionFailed, "Decryptor", "Decrypt", "verify token")
	}
	return plaintext, nil
}

// DecryptEnvelope decrypts a token and decodes the log envelope inside it.
func (d *Decryptor) DecryptEnvelope(token []byte) (*Envelope, error) {
	plaintext, err := d.Decrypt(token)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "Decryptor", "DecryptEnvelope", "decode envelope")
	}
	return &env, nil
}
