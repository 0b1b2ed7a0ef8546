package service

import (
	"fmt"
	"strings"
	"unicode"

	"wallet-psbt/pkg/errno"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	minAddressLen = 26
	maxAddressLen = 90
)

// ChainParams 按网络名返回链参数
func ChainParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}
	return nil, fmt.Errorf("unknown network %q", network)
}

// ValidateAddress 格式校验 (去空白、长度、仅字母数字) 后按链参数解码
func ValidateAddress(raw string, params *chaincfg.Params) (btcutil.Address, error) {
	addr := strings.TrimSpace(raw)
	if len(addr) < minAddressLen || len(addr) > maxAddressLen {
		return nil, errno.Newf(errno.InvalidAddress, "length %d outside %d..%d", len(addr), minAddressLen, maxAddressLen)
	}
	for _, r := range addr {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return nil, errno.Newf(errno.InvalidAddress, "unexpected character %q", r)
		}
	}

	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, errno.Wrap(errno.InvalidAddress, err)
	}
	if !decoded.IsForNet(params) {
		return nil, errno.Newf(errno.InvalidAddress, "address is not for %s", params.Name)
	}
	return decoded, nil
}
