package noderpc

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-psbt/internal/model"
	"wallet-psbt/pkg/amount"
	"wallet-psbt/pkg/errno"
	"wallet-psbt/pkg/validator"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

const (
	MethodListUnspent          = "listunspent"
	MethodGetRawChangeAddress  = "getrawchangeaddress"
	MethodCreateRawTransaction = "createrawtransaction"
	MethodDecodeRawTransaction = "decoderawtransaction"
	MethodSignRawTransaction   = "signrawtransactionwithwallet"
	MethodWalletProcessPsbt    = "walletprocesspsbt"
	MethodSendRawTransaction   = "sendrawtransaction"
	MethodGetBlockchainInfo    = "getblockchaininfo"
	MethodGetBalances          = "getbalances"
)

type listUnspentResult struct {
	TxID          string          `json:"txid" validate:"required,hexadecimal,len=64"`
	Vout          uint32          `json:"vout"`
	Address       string          `json:"address"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int64           `json:"confirmations"`
}

type decodeRawTransactionResult struct {
	TxID string            `json:"txid" validate:"required,hexadecimal,len=64"`
	Vin  []json.RawMessage `json:"vin" validate:"required"`
	Vout []json.RawMessage `json:"vout" validate:"required"`
}

type signRawTransactionResult struct {
	Hex      string            `json:"hex" validate:"required,hexadecimal"`
	Complete bool              `json:"complete"`
	Errors   []model.SignError `json:"errors"`
}

type walletProcessPsbtResult struct {
	Psbt     string `json:"psbt" validate:"required,base64"`
	Complete bool   `json:"complete"`
}

type getBlockchainInfoResult struct {
	Chain         string `json:"chain" validate:"required"`
	Blocks        int64  `json:"blocks" validate:"gte=0"`
	Headers       int64  `json:"headers" validate:"gte=0"`
	BestBlockHash string `json:"bestblockhash" validate:"required,hexadecimal,len=64"`
}

type balanceBucket struct {
	Trusted          decimal.Decimal `json:"trusted"`
	UntrustedPending decimal.Decimal `json:"untrusted_pending"`
	Immature         decimal.Decimal `json:"immature"`
}

type getBalancesResult struct {
	Mine *balanceBucket `json:"mine" validate:"required"`
}

type rawInput struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

func schemaError(method string, err error) error {
	return errno.Wrap(errno.SchemaMismatch, err).WithMethod(method)
}

// satoshis 节点金额转最小单位，超过总供应量视为响应异常
func satoshis(d decimal.Decimal) (int64, error) {
	units, err := amount.ToBaseUnits(d)
	if err != nil {
		return 0, fmt.Errorf("amount %s: %w", d, err)
	}
	if units > btcutil.MaxSatoshi {
		return 0, fmt.Errorf("amount %s exceeds max supply", d)
	}
	return units, nil
}

// ListUnspent returns the wallet's spendable outputs in the order the node reports them.
func (c *Client) ListUnspent(ctx context.Context) ([]model.UTXO, error) {
	var raw []listUnspentResult
	if err := c.Call(ctx, MethodListUnspent, nil, &raw); err != nil {
		return nil, err
	}
	utxos := make([]model.UTXO, 0, len(raw))
	for i, r := range raw {
		if err := validator.Struct(r); err != nil {
			return nil, schemaError(MethodListUnspent, fmt.Errorf("utxo %d: %w", i, err))
		}
		units, err := satoshis(r.Amount)
		if err != nil {
			return nil, schemaError(MethodListUnspent, fmt.Errorf("utxo %d: %w", i, err))
		}
		utxos = append(utxos, model.UTXO{
			TxID:          r.TxID,
			Vout:          r.Vout,
			Address:       r.Address,
			Amount:        units,
			Confirmations: r.Confirmations,
		})
	}
	return utxos, nil
}

// GetChangeAddress asks the wallet for a fresh change address.
func (c *Client) GetChangeAddress(ctx context.Context) (string, error) {
	var addr string
	if err := c.Call(ctx, MethodGetRawChangeAddress, nil, &addr); err != nil {
		return "", err
	}
	if addr == "" {
		return "", schemaError(MethodGetRawChangeAddress, fmt.Errorf("empty address"))
	}
	return addr, nil
}

// CreateRawTransaction builds an unsigned transaction. Output amounts are
// sent as fixed eight-decimal numbers so no float rounding is involved.
func (c *Client) CreateRawTransaction(ctx context.Context, inputs []model.OutPoint, outputs []model.TxOutput) (string, error) {
	ins := make([]rawInput, len(inputs))
	for i, in := range inputs {
		ins[i] = rawInput{TxID: in.TxID, Vout: in.Vout}
	}
	outs := make(map[string]json.Number, len(outputs))
	for _, out := range outputs {
		if _, dup := outs[out.Address]; dup {
			return "", errno.Newf(errno.InvalidAddress, "duplicate output address %s", out.Address).
				WithMethod(MethodCreateRawTransaction)
		}
		outs[out.Address] = json.Number(amount.FormatDisplay(out.Amount))
	}

	var hexTx string
	if err := c.Call(ctx, MethodCreateRawTransaction, []any{ins, outs}, &hexTx); err != nil {
		return "", err
	}
	if err := validator.Var(hexTx, "required,hexadecimal"); err != nil {
		return "", schemaError(MethodCreateRawTransaction, err)
	}
	return hexTx, nil
}

// DecodeRawTransaction returns the txid and input/output counts of a raw transaction.
func (c *Client) DecodeRawTransaction(ctx context.Context, hexTx string) (model.DecodedTx, error) {
	var raw decodeRawTransactionResult
	if err := c.Call(ctx, MethodDecodeRawTransaction, []any{hexTx}, &raw); err != nil {
		return model.DecodedTx{}, err
	}
	if err := validator.Struct(raw); err != nil {
		return model.DecodedTx{}, schemaError(MethodDecodeRawTransaction, err)
	}
	return model.DecodedTx{TxID: raw.TxID, InputCount: len(raw.Vin), OutputCount: len(raw.Vout)}, nil
}

// SignRawTransaction signs every input the wallet holds keys for.
func (c *Client) SignRawTransaction(ctx context.Context, hexTx string) (model.SignResult, error) {
	var raw signRawTransactionResult
	if err := c.Call(ctx, MethodSignRawTransaction, []any{hexTx}, &raw); err != nil {
		return model.SignResult{}, err
	}
	if err := validator.Struct(raw); err != nil {
		return model.SignResult{}, schemaError(MethodSignRawTransaction, err)
	}
	return model.SignResult{Hex: raw.Hex, Complete: raw.Complete, Errors: raw.Errors}, nil
}

// ProcessWalletPsbt lets the wallet update and sign a base64 PSBT.
func (c *Client) ProcessWalletPsbt(ctx context.Context, b64 string) (model.ProcessedPsbt, error) {
	var raw walletProcessPsbtResult
	if err := c.Call(ctx, MethodWalletProcessPsbt, []any{b64}, &raw); err != nil {
		return model.ProcessedPsbt{}, err
	}
	if err := validator.Struct(raw); err != nil {
		return model.ProcessedPsbt{}, schemaError(MethodWalletProcessPsbt, err)
	}
	return model.ProcessedPsbt{Psbt: raw.Psbt, Complete: raw.Complete}, nil
}

// SubmitRawTransaction relays a signed transaction and returns the txid the node reports.
func (c *Client) SubmitRawTransaction(ctx context.Context, hexTx string) (string, error) {
	var txid string
	if err := c.Call(ctx, MethodSendRawTransaction, []any{hexTx}, &txid); err != nil {
		return "", err
	}
	if err := validator.Var(txid, "required,hexadecimal,len=64"); err != nil {
		return "", schemaError(MethodSendRawTransaction, err)
	}
	return txid, nil
}

// GetChainStatus reports the node's view of the chain tip.
func (c *Client) GetChainStatus(ctx context.Context) (model.ChainStatus, error) {
	var raw getBlockchainInfoResult
	if err := c.Call(ctx, MethodGetBlockchainInfo, nil, &raw); err != nil {
		return model.ChainStatus{}, err
	}
	if err := validator.Struct(raw); err != nil {
		return model.ChainStatus{}, schemaError(MethodGetBlockchainInfo, err)
	}
	return model.ChainStatus{
		Chain:         raw.Chain,
		BlockHeight:   raw.Blocks,
		Headers:       raw.Headers,
		BestBlockHash: raw.BestBlockHash,
	}, nil
}

// GetBalances returns the wallet's own balances; watch-only funds are ignored.
func (c *Client) GetBalances(ctx context.Context) (model.Balances, error) {
	var raw getBalancesResult
	if err := c.Call(ctx, MethodGetBalances, nil, &raw); err != nil {
		return model.Balances{}, err
	}
	if err := validator.Struct(raw); err != nil {
		return model.Balances{}, schemaError(MethodGetBalances, err)
	}

	var out model.Balances
	fields := []struct {
		name string
		in   decimal.Decimal
		dst  *int64
	}{
		{"trusted", raw.Mine.Trusted, &out.Trusted},
		{"untrusted_pending", raw.Mine.UntrustedPending, &out.UntrustedPending},
		{"immature", raw.Mine.Immature, &out.Immature},
	}
	for _, f := range fields {
		units, err := satoshis(f.in)
		if err != nil {
			return model.Balances{}, schemaError(MethodGetBalances, fmt.Errorf("mine.%s: %w", f.name, err))
		}
		*f.dst = units
	}
	return out, nil
}
