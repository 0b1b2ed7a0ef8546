// Package credential persists the node RPC username and password encrypted
// under a passphrase. Only the process boundary uses it; the pipeline never
// sees credentials.
package credential

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"wallet-psbt/pkg/crypto_util"
)

const (
	fileVersion = 1
	kdfScrypt   = "scrypt"
	cipherName  = "aes-256-gcm"
)

var (
	// ErrNotFound 凭证文件不存在
	ErrNotFound = errors.New("credential: no stored credentials")
	// ErrDecrypt 口令错误或文件被篡改
	ErrDecrypt = errors.New("credential: wrong passphrase or corrupted file")
	// ErrEmptyPassphrase 未提供口令
	ErrEmptyPassphrase = errors.New("credential: passphrase is empty")
)

// Credentials 节点 RPC 认证信息
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String never prints the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: ***}", c.Username)
}

// sealedFile 磁盘上的 JSON 结构
type sealedFile struct {
	Version    int                      `json:"version"`
	KDF        string                   `json:"kdf"`
	KDFParams  crypto_util.ScryptParams `json:"kdfparams"`
	Salt       string                   `json:"salt"`       // hex
	Cipher     string                   `json:"cipher"`     // aes-256-gcm
	CipherText string                   `json:"ciphertext"` // hex(nonce || sealed)
}

// FileStore 加密凭证文件
type FileStore struct {
	path       string
	passphrase string
	params     crypto_util.ScryptParams
}

// Option customises a FileStore.
type Option func(*FileStore)

// WithScryptParams overrides the key derivation cost for new files.
func WithScryptParams(p crypto_util.ScryptParams) Option {
	return func(s *FileStore) { s.params = p }
}

// NewFileStore returns a store backed by path.
func NewFileStore(path, passphrase string, opts ...Option) *FileStore {
	s := &FileStore{path: path, passphrase: passphrase, params: crypto_util.DefaultScryptParams}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path 凭证文件路径
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether a credential file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save 加密并写入凭证，文件权限 0600，先写临时文件再原子替换
func (s *FileStore) Save(c Credentials) error {
	if s.passphrase == "" {
		return ErrEmptyPassphrase
	}
	plaintext, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("credential: encode: %w", err)
	}

	salt, err := crypto_util.NewSalt()
	if err != nil {
		return fmt.Errorf("credential: salt: %w", err)
	}
	key, err := crypto_util.DeriveKey(s.passphrase, salt, s.params)
	if err != nil {
		return fmt.Errorf("credential: derive key: %w", err)
	}
	sealed, err := crypto_util.EncryptAESGCM(key, plaintext, []byte(cipherName))
	if err != nil {
		return fmt.Errorf("credential: encrypt: %w", err)
	}

	data, err := json.MarshalIndent(sealedFile{
		Version:    fileVersion,
		KDF:        kdfScrypt,
		KDFParams:  s.params,
		Salt:       hex.EncodeToString(salt),
		Cipher:     cipherName,
		CipherText: hex.EncodeToString(sealed),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: encode file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("credential: create dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("credential: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credential: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credential: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credential: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("credential: replace: %w", err)
	}
	return nil
}

// Load 读取并解密凭证
func (s *FileStore) Load() (Credentials, error) {
	if s.passphrase == "" {
		return Credentials{}, ErrEmptyPassphrase
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("credential: read: %w", err)
	}

	var f sealedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Credentials{}, fmt.Errorf("credential: parse file: %w", err)
	}
	if f.Version != fileVersion || f.KDF != kdfScrypt || f.Cipher != cipherName {
		return Credentials{}, fmt.Errorf("credential: unsupported format v%d %s/%s", f.Version, f.KDF, f.Cipher)
	}
	if err := f.KDFParams.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("credential: kdfparams: %w", err)
	}
	salt, err := hex.DecodeString(f.Salt)
	if err != nil {
		return Credentials{}, fmt.Errorf("credential: invalid salt: %w", err)
	}
	sealed, err := hex.DecodeString(f.CipherText)
	if err != nil {
		return Credentials{}, fmt.Errorf("credential: invalid ciphertext: %w", err)
	}

	key, err := crypto_util.DeriveKey(s.passphrase, salt, f.KDFParams)
	if err != nil {
		return Credentials{}, fmt.Errorf("credential: derive key: %w", err)
	}
	plaintext, err := crypto_util.DecryptAESGCM(key, sealed, []byte(cipherName))
	if err != nil {
		return Credentials{}, ErrDecrypt
	}

	var c Credentials
	if err := json.Unmarshal(plaintext, &c); err != nil {
		return Credentials{}, ErrDecrypt
	}
	return c, nil
}
