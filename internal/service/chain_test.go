package service

import (
	"errors"
	"strings"
	"testing"

	"wallet-psbt/pkg/errno"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainParams(t *testing.T) {
	for _, name := range []string{"mainnet", "testnet", "regtest", "signet"} {
		p, err := ChainParams(name)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	_, err := ChainParams("moonnet")
	assert.Error(t, err)
}

func TestValidateAddressTrimsAndDecodes(t *testing.T) {
	params, err := ChainParams("regtest")
	require.NoError(t, err)
	addr := regtestAddr(t, 7)

	decoded, err := ValidateAddress("\t"+addr+" ", params)
	require.NoError(t, err)
	assert.Equal(t, addr, decoded.EncodeAddress())

	_, err = ValidateAddress(addr+"ü", params)
	assert.True(t, errors.Is(err, errno.InvalidAddress))
}

func TestCheckPsbtRejectsGarbage(t *testing.T) {
	_, err := checkPsbt("not a psbt")
	assert.Error(t, err)
	_, err = checkPsbt("")
	assert.Error(t, err)
}

func keyDerivedAddresses(t *testing.T, params *chaincfg.Params) map[string]btcutil.Address {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey()
	hash := btcutil.Hash160(pub.SerializeCompressed())

	p2pkh, err := btcutil.NewAddressPubKeyHash(hash, params)
	require.NoError(t, err)
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(hash, params)
	require.NoError(t, err)
	p2tr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(pub)), params)
	require.NoError(t, err)

	return map[string]btcutil.Address{"p2pkh": p2pkh, "p2wpkh": p2wpkh, "p2tr": p2tr}
}

func TestValidateAddressAcceptsKeyDerivedTypes(t *testing.T) {
	for name, addr := range keyDerivedAddresses(t, &chaincfg.RegressionNetParams) {
		t.Run(name, func(t *testing.T) {
			decoded, err := ValidateAddress(addr.EncodeAddress(), &chaincfg.RegressionNetParams)
			require.NoError(t, err)
			assert.Equal(t, addr.EncodeAddress(), decoded.EncodeAddress())
		})
	}
}

func TestValidateAddressRejectsOtherNetwork(t *testing.T) {
	for name, addr := range keyDerivedAddresses(t, &chaincfg.MainNetParams) {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateAddress(addr.EncodeAddress(), &chaincfg.RegressionNetParams)
			assert.True(t, errors.Is(err, errno.InvalidAddress), "got %v", err)
		})
	}
}

func TestValidateAddressLength(t *testing.T) {
	_, err := ValidateAddress("bcrt1q", &chaincfg.RegressionNetParams)
	assert.True(t, errors.Is(err, errno.InvalidAddress))
	_, err = ValidateAddress(strings.Repeat("q", 91), &chaincfg.RegressionNetParams)
	assert.True(t, errors.Is(err, errno.InvalidAddress))
}
