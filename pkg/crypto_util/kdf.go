package crypto_util

import (
	"fmt"

	"wallet-psbt/pkg/safe_random"

	"golang.org/x/crypto/scrypt"
)

// ScryptParams scrypt 派生参数，随密文一起保存，解密时原样使用
type ScryptParams struct {
	N     int `json:"n"`
	R     int `json:"r"`
	P     int `json:"p"`
	DKLen int `json:"dklen"`
}

// DefaultScryptParams 交互式场景的推荐参数 (N=2^18)
var DefaultScryptParams = ScryptParams{N: 1 << 18, R: 8, P: 1, DKLen: 32}

// 解密时接受的上限，文件中的参数不可信
const (
	maxScryptN      = 1 << 20
	maxScryptR      = 32
	maxScryptP      = 16
	maxScryptMemory = 512 << 20 // 128 * N * R 字节
)

// Validate 拒绝非法或代价过高的参数
func (p ScryptParams) Validate() error {
	if p.N < 2 || p.N > maxScryptN || p.N&(p.N-1) != 0 {
		return fmt.Errorf("crypto_util: scrypt N=%d must be a power of two in [2, %d]", p.N, maxScryptN)
	}
	if p.R < 1 || p.R > maxScryptR {
		return fmt.Errorf("crypto_util: scrypt r=%d out of range [1, %d]", p.R, maxScryptR)
	}
	if p.P < 1 || p.P > maxScryptP {
		return fmt.Errorf("crypto_util: scrypt p=%d out of range [1, %d]", p.P, maxScryptP)
	}
	if 128*int64(p.N)*int64(p.R) > maxScryptMemory {
		return fmt.Errorf("crypto_util: scrypt N=%d r=%d needs more than %d MiB", p.N, p.R, maxScryptMemory>>20)
	}
	return nil
}

// NewSalt 生成 32 字节随机盐
func NewSalt() ([]byte, error) {
	return safe_random.GenerateRandomBytes(32)
}

// DeriveKey 使用 scrypt 从口令派生对称密钥
func DeriveKey(passphrase string, salt []byte, p ScryptParams) ([]byte, error) {
	if p.DKLen != 16 && p.DKLen != 24 && p.DKLen != 32 {
		return nil, fmt.Errorf("crypto_util: unsupported key length %d", p.DKLen)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, p.DKLen)
}
