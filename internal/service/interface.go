package service

import (
	"context"
	"iter"

	"wallet-psbt/internal/model"
	"wallet-psbt/internal/store"
)

// NodeService 节点 RPC 能力，由 noderpc.Client 实现
type NodeService interface {
	ListUnspent(ctx context.Context) ([]model.UTXO, error)
	GetChangeAddress(ctx context.Context) (string, error)
	CreateRawTransaction(ctx context.Context, inputs []model.OutPoint, outputs []model.TxOutput) (string, error)
	DecodeRawTransaction(ctx context.Context, hexTx string) (model.DecodedTx, error)
	SignRawTransaction(ctx context.Context, hexTx string) (model.SignResult, error)
	ProcessWalletPsbt(ctx context.Context, b64 string) (model.ProcessedPsbt, error)
	SubmitRawTransaction(ctx context.Context, hexTx string) (string, error)
	GetChainStatus(ctx context.Context) (model.ChainStatus, error)
	GetBalances(ctx context.Context) (model.Balances, error)
}

// RecordStore PSBT 记录存储，由 store.Store 实现
type RecordStore interface {
	Create(rec model.Record) (model.Record, error)
	Get(id string) (model.Record, error)
	All() iter.Seq[model.Record]
	Transition(ctx context.Context, id string, from model.Status, fn store.TransitionFunc) (model.Record, error)
	Delete(ctx context.Context, id string) error
}

var _ RecordStore = (*store.Store)(nil)
