package processor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
)

// genKeyFile generates fernet keys and writes them to a key file, one per
// line, the way deployments lay out the cipher key secret.
func genKeyFile(t *testing.T, count int) (string, []*fernet.Key) {
	t.Helper()

	keys := make([]*fernet.Key, count)
	var lines []byte
	for i := range keys {
		var key fernet.Key
		require.NoError(t, key.Generate())
		keys[i] = &key
		lines = append(lines, key.Encode()...)
		lines = append(lines, '\n')
	}

	path := filepath.Join(t.TempDir(), "cipher.key")
	require.NoError(t, os.WriteFile(path, lines, 0o600))
	return path, keys
}

func TestNewDecryptor_LoadsKeys(t *testing.T) {
	path, _ := genKeyFile(t, 1)

	dec, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.NoError(t, err)
	assert.NotNil(t, dec)
}

func TestNewDecryptor_MissingKeyFile(t *testing.T) {
	_, err := NewDecryptor(config.PipelineConfig{
		Category: "weblog",
		KeyFile:  filepath.Join(t.TempDir(), "nope.key"),
	})
	require.Error(t, err)
}

func TestNewDecryptor_GarbageKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cipher.key")
	require.NoError(t, os.WriteFile(path, []byte("not-a-fernet-key\n"), 0o600))

	_, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecrypt_RoundTrip(t *testing.T) {
	path, keys := genKeyFile(t, 1)
	dec, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.NoError(t, err)

	token, err := fernet.EncryptAndSign([]byte(`{"name":"web","log":"hello"}`), keys[0])
	require.NoError(t, err)

	plaintext, err := dec.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"web","log":"hello"}`, string(plaintext))
}

func TestDecrypt_WrongKeyIsInvalid(t *testing.T) {
	path, _ := genKeyFile(t, 1)
	dec, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.NoError(t, err)

	var other fernet.Key
	require.NoError(t, other.Generate())
	token, err := fernet.EncryptAndSign([]byte("secret"), &other)
	require.NoError(t, err)

	_, err = dec.Decrypt(token)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "undecryptable records must be droppable, not retried")
	assert.ErrorIs(t, err, errors.ErrDecryptionFailed)
}

func TestDecrypt_GarbageTokenIsInvalid(t *testing.T) {
	path, _ := genKeyFile(t, 1)
	dec, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.NoError(t, err)

	_, err = dec.Decrypt([]byte("definitely not a token"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecrypt_KeyRotation(t *testing.T) {
	path, keys := genKeyFile(t, 2)
	dec, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.NoError(t, err)

	// records signed with either the new or the old key stay readable
	for _, key := range keys {
		token, err := fernet.EncryptAndSign([]byte("rotated"), key)
		require.NoError(t, err)

		plaintext, err := dec.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, "rotated", string(plaintext))
	}
}

func TestDecryptEnvelope(t *testing.T) {
	path, keys := genKeyFile(t, 1)
	dec, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.NoError(t, err)

	token, err := fernet.EncryptAndSign([]byte(`{"name":"WebServer01","log":"GET / 200"}`), keys[0])
	require.NoError(t, err)

	env, err := dec.DecryptEnvelope(token)
	require.NoError(t, err)
	assert.Equal(t, "WebServer01", env.Name)
	assert.Equal(t, "GET / 200", env.Log)
}

func TestDecryptEnvelope_BadJSONIsInvalid(t *testing.T) {
	path, keys := genKeyFile(t, 1)
	dec, err := NewDecryptor(config.PipelineConfig{Category: "weblog", KeyFile: path})
	require.NoError(t, err)

	token, err := fernet.EncryptAndSign([]byte("not json at all"), keys[0])
	require.NoError(t, err)

	_, err = dec.DecryptEnvelope(token)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrParsingFailed)
}

func TestDecrypt_FreshTokenPassesTTL(t *testing.T) {
	path, keys := genKeyFile(t, 1)

	cfg := config.PipelineConfig{Category: "weblog", KeyFile: path, TokenTTLStr: "1h"}
	require.NoError(t, cfg.Validate())

	dec, err := NewDecryptor(cfg)
	require.NoError(t, err)

	token, err := fernet.EncryptAndSign([]byte("timely"), keys[0])
	require.NoError(t, err)

	plaintext, err := dec.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "timely", string(plaintext))
}
