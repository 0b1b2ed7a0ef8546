package model

// UTXO 节点返回的未花费输出，只读
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Address       string `json:"address"`
	Amount        int64  `json:"amount_base_units"`
	Confirmations int64  `json:"confirmations"`
}

func (u UTXO) OutPoint() OutPoint {
	return OutPoint{TxID: u.TxID, Vout: u.Vout}
}

// OutPoint 交易输入引用
type OutPoint struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// TxOutput 交易输出 (地址 + 最小单位金额)
type TxOutput struct {
	Address string
	Amount  int64
}

// Selection 选币结果，临时值不持久化
type Selection struct {
	Inputs []UTXO
	Total  int64
	Change int64
}

// OutPoints 返回选中输入的引用列表
func (s Selection) OutPoints() []OutPoint {
	ops := make([]OutPoint, len(s.Inputs))
	for i, u := range s.Inputs {
		ops[i] = u.OutPoint()
	}
	return ops
}

// DecodedTx decoderawtransaction 的校验视图
type DecodedTx struct {
	TxID        string
	InputCount  int
	OutputCount int
}

// SignError signrawtransactionwithwallet 返回的单个输入错误
type SignError struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Error string `json:"error"`
}

// SignResult signrawtransactionwithwallet 结果
type SignResult struct {
	Hex      string
	Complete bool
	Errors   []SignError
}

// ProcessedPsbt walletprocesspsbt 结果
type ProcessedPsbt struct {
	Psbt     string
	Complete bool
}

// ChainStatus getblockchaininfo 的精简视图
type ChainStatus struct {
	Chain         string `json:"chain"`
	BlockHeight   int64  `json:"block_height"`
	Headers       int64  `json:"headers"`
	BestBlockHash string `json:"best_block_hash"`
}

// Balances getbalances 中 mine 部分，最小单位
type Balances struct {
	Trusted          int64 `json:"trusted"`
	UntrustedPending int64 `json:"untrusted_pending"`
	Immature         int64 `json:"immature"`
}
