package service

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	draftTxVersion = 2
	// 占位输入的 sequence，允许 nLockTime 生效但不启用 RBF
	placeholderSequence uint32 = 0xfffffffe
)

// buildDraftPsbt 构造草稿 PSBT: 一个全零 txid 的占位输入 + 收款输出。
// 真实输入在广播时重新选币，草稿只用于预览。
func buildDraftPsbt(recipient btcutil.Address, amountBaseUnits int64) (string, error) {
	pkScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return "", fmt.Errorf("recipient script: %w", err)
	}

	packet, err := psbt.New(
		[]*wire.OutPoint{wire.NewOutPoint(&chainhash.Hash{}, 0)},
		[]*wire.TxOut{wire.NewTxOut(amountBaseUnits, pkScript)},
		draftTxVersion,
		0,
		[]uint32{placeholderSequence},
	)
	if err != nil {
		return "", fmt.Errorf("new psbt: %w", err)
	}
	return packet.B64Encode()
}

// checkPsbt 解码 base64 PSBT 并要求至少一个输入和一个输出
func checkPsbt(b64 string) (*psbt.Packet, error) {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(b64), true)
	if err != nil {
		return nil, fmt.Errorf("decode psbt: %w", err)
	}
	if len(packet.UnsignedTx.TxIn) == 0 {
		return nil, fmt.Errorf("psbt has no inputs")
	}
	if len(packet.UnsignedTx.TxOut) == 0 {
		return nil, fmt.Errorf("psbt has no outputs")
	}
	return packet, nil
}
