package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"wallet-psbt/internal/coinselect"
	"wallet-psbt/internal/event"
	"wallet-psbt/internal/model"
	"wallet-psbt/internal/service/mq"
	"wallet-psbt/pkg/amount"
	"wallet-psbt/pkg/errno"
	"wallet-psbt/pkg/logger"
	"wallet-psbt/pkg/monitor"

	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"
)

const (
	defaultCallTimeout = 30 * time.Second
	publishTimeout     = 5 * time.Second
)

// Pipeline 是 PSBT 生命周期 (draft -> signed -> broadcast) 的唯一写入者。
// 进程边界负责组装它的依赖；测试可以各自构造互不干扰的实例。
type Pipeline struct {
	node   NodeService
	store  RecordStore
	params *chaincfg.Params

	producer mq.Producer
	topic    string
	metrics  *monitor.BusinessMetrics
	log      *zap.Logger

	callTimeout time.Duration
	now         func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithProducer publishes lifecycle events to topic.
func WithProducer(p mq.Producer, topic string) Option {
	return func(pl *Pipeline) {
		pl.producer = p
		pl.topic = topic
	}
}

func WithMetrics(m *monitor.BusinessMetrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(pl *Pipeline) { pl.log = l }
}

// WithCallTimeout bounds every individual node call.
func WithCallTimeout(d time.Duration) Option {
	return func(pl *Pipeline) {
		if d > 0 {
			pl.callTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.now = now }
}

// NewPipeline 创建流水线
func NewPipeline(node NodeService, st RecordStore, params *chaincfg.Params, opts ...Option) *Pipeline {
	p := &Pipeline{
		node:        node,
		store:       st,
		params:      params,
		producer:    mq.NopProducer{},
		log:         logger.Log,
		callTimeout: defaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Named("pipeline")
	return p
}

// CreateDraft 校验发送意图并保存草稿。草稿中的 PSBT 只是预览，不会被直接广播。
func (p *Pipeline) CreateDraft(ctx context.Context, req model.CreateRequest) (rec model.Record, err error) {
	defer func() { err = p.finish("create", rec.ID, err) }()

	addr, err := ValidateAddress(req.RecipientAddress, p.params)
	if err != nil {
		return model.Record{}, err
	}
	if !req.Amount.IsPositive() {
		return model.Record{}, errno.Newf(errno.InvalidAmount, "amount must be positive, got %s", req.Amount)
	}
	amountBase, err := amount.ToBaseUnits(req.Amount)
	if err != nil {
		return model.Record{}, err
	}
	if amountBase <= 0 {
		return model.Record{}, errno.Newf(errno.InvalidAmount, "amount %s is below one base unit", req.Amount)
	}
	if req.Fee.IsNegative() {
		return model.Record{}, errno.Newf(errno.InvalidAmount, "fee must not be negative, got %s", req.Fee)
	}
	if _, err := amount.CeilBaseUnits(req.Fee); err != nil {
		return model.Record{}, err
	}

	encoded, err := buildDraftPsbt(addr, amountBase)
	if err != nil {
		return model.Record{}, errno.Wrap(errno.InternalServerError, err)
	}
	if _, err := checkPsbt(encoded); err != nil {
		return model.Record{}, errno.Wrap(errno.InternalServerError, err)
	}

	rec, err = p.store.Create(model.Record{
		RecipientAddress: addr.EncodeAddress(),
		AmountBaseUnits:  amountBase,
		Fee:              req.Fee,
		Description:      strings.TrimSpace(req.Description),
		EncodedTx:        encoded,
		CreatedAt:        p.now(),
	})
	if err != nil {
		return model.Record{}, errno.Wrap(errno.InternalServerError, err)
	}

	p.publish(ctx, event.TypeCreated, rec)
	return rec, nil
}

// Sign 让节点钱包处理草稿 PSBT 并替换编码结果 (draft -> signed)
func (p *Pipeline) Sign(ctx context.Context, id string) (rec model.Record, err error) {
	defer func() { err = p.finish("sign", id, err) }()

	rec, err = p.store.Transition(ctx, id, model.StatusDraft, func(cur model.Record) (model.Record, error) {
		processed, err := callNode(ctx, p.callTimeout, func(ctx context.Context) (model.ProcessedPsbt, error) {
			return p.node.ProcessWalletPsbt(ctx, cur.EncodedTx)
		})
		if err != nil {
			return cur, reclassify(err, errno.SigningFailed)
		}
		if !processed.Complete {
			p.log.Debug("wallet returned a partially signed psbt", zap.String("record_id", id))
		}
		cur.EncodedTx = processed.Psbt
		cur.Status = model.StatusSigned
		return cur, nil
	})
	if err != nil {
		return model.Record{}, err
	}

	p.publish(ctx, event.TypeSigned, rec)
	return rec, nil
}

// Broadcast 在广播时重新选币并按顺序调用节点:
// listunspent -> getrawchangeaddress (有找零时) -> createrawtransaction -> decoderawtransaction
// -> signrawtransactionwithwallet -> decoderawtransaction -> getblockchaininfo -> sendrawtransaction。
// 任何一步失败记录保持 signed 不变。
func (p *Pipeline) Broadcast(ctx context.Context, id string) (rec model.Record, err error) {
	defer func() { err = p.finish("broadcast", id, err) }()

	rec, err = p.store.Transition(ctx, id, model.StatusSigned, func(cur model.Record) (model.Record, error) {
		return p.broadcast(ctx, cur)
	})
	if err != nil {
		return model.Record{}, err
	}

	p.metrics.AddBroadcastAmount(rec.AmountBaseUnits)
	p.publish(ctx, event.TypeBroadcast, rec)
	return rec, nil
}

func (p *Pipeline) broadcast(ctx context.Context, cur model.Record) (model.Record, error) {
	fee, err := amount.CeilBaseUnits(cur.Fee)
	if err != nil {
		return cur, err
	}
	if fee <= 0 {
		return cur, errno.Newf(errno.InvalidAmount, "fee must be positive after rounding up, got %s", cur.Fee)
	}
	if cur.AmountBaseUnits > math.MaxInt64-fee {
		return cur, errno.Newf(errno.InvalidAmount, "amount plus fee overflows")
	}
	required := cur.AmountBaseUnits + fee

	// 每次广播都重新获取 UTXO，不做缓存
	utxos, err := callNode(ctx, p.callTimeout, p.node.ListUnspent)
	if err != nil {
		return cur, err
	}
	selection, err := coinselect.Select(utxos, required)
	if err != nil {
		return cur, err
	}

	outputs := []model.TxOutput{{Address: cur.RecipientAddress, Amount: cur.AmountBaseUnits}}
	if selection.Change > 0 {
		changeAddr, err := callNode(ctx, p.callTimeout, p.node.GetChangeAddress)
		if err != nil {
			return cur, err
		}
		outputs = append(outputs, model.TxOutput{Address: changeAddr, Amount: selection.Change})
	}
	inputs := selection.OutPoints()

	rawTx, err := callNode(ctx, p.callTimeout, func(ctx context.Context) (string, error) {
		return p.node.CreateRawTransaction(ctx, inputs, outputs)
	})
	if err != nil {
		return cur, err
	}
	if _, err := p.decodeAndCheck(ctx, rawTx, len(inputs), len(outputs)); err != nil {
		return cur, err
	}

	signed, err := callNode(ctx, p.callTimeout, func(ctx context.Context) (model.SignResult, error) {
		return p.node.SignRawTransaction(ctx, rawTx)
	})
	if err != nil {
		return cur, reclassify(err, errno.SigningFailed)
	}
	if !signed.Complete {
		return cur, errno.New(errno.IncompleteSigning).WithMethod("signrawtransactionwithwallet").
			WithDetail(describeSignErrors(signed.Errors))
	}

	final, err := p.decodeAndCheck(ctx, signed.Hex, len(inputs), len(outputs))
	if err != nil {
		return cur, err
	}

	chain, err := callNode(ctx, p.callTimeout, p.node.GetChainStatus)
	if err != nil {
		return cur, err
	}
	p.metrics.SetBlockHeight(chain.BlockHeight)

	txid, err := callNode(ctx, p.callTimeout, func(ctx context.Context) (string, error) {
		return p.node.SubmitRawTransaction(ctx, signed.Hex)
	})
	if err != nil {
		return cur, reclassify(err, errno.BroadcastRejected)
	}
	if txid != final.TxID {
		p.log.Warn("node reported a different txid than the decoded transaction",
			zap.String("record_id", cur.ID), zap.String("decoded", final.TxID), zap.String("submitted", txid))
	}

	cur.Status = model.StatusBroadcast
	cur.FinalTxID = txid
	cur.Inputs = slices.Clone(inputs)
	cur.SignedTx = signed.Hex
	return cur, nil
}

// decodeAndCheck 解码交易并核对输入输出数量
func (p *Pipeline) decodeAndCheck(ctx context.Context, hexTx string, wantIn, wantOut int) (model.DecodedTx, error) {
	decoded, err := callNode(ctx, p.callTimeout, func(ctx context.Context) (model.DecodedTx, error) {
		return p.node.DecodeRawTransaction(ctx, hexTx)
	})
	if err != nil {
		return model.DecodedTx{}, err
	}
	if decoded.InputCount != wantIn || decoded.OutputCount != wantOut {
		return model.DecodedTx{}, errno.New(errno.SchemaMismatch).WithMethod("decoderawtransaction").
			WithDetail(fmt.Sprintf("decoded %d inputs / %d outputs, expected %d / %d",
				decoded.InputCount, decoded.OutputCount, wantIn, wantOut))
	}
	return decoded, nil
}

// Remove 删除记录，等待该记录上正在进行的状态迁移结束
func (p *Pipeline) Remove(ctx context.Context, id string) (err error) {
	defer func() { err = p.finish("remove", id, err) }()

	rec, err := p.store.Get(id)
	if err != nil {
		return err
	}
	if err := p.store.Delete(ctx, id); err != nil {
		return err
	}
	p.publish(ctx, event.TypeRemoved, rec)
	return nil
}

// Get 返回记录副本
func (p *Pipeline) Get(_ context.Context, id string) (model.Record, error) {
	return p.store.Get(id)
}

// List 返回所有记录副本，按创建时间倒序
func (p *Pipeline) List(_ context.Context) []model.Record {
	return slices.Collect(p.store.All())
}

// ChainStatus 查询节点链状态，用于健康检查
func (p *Pipeline) ChainStatus(ctx context.Context) (model.ChainStatus, error) {
	status, err := callNode(ctx, p.callTimeout, p.node.GetChainStatus)
	if err != nil {
		return model.ChainStatus{}, err
	}
	p.metrics.SetBlockHeight(status.BlockHeight)
	return status, nil
}

// ListUnspent 钱包当前可花费输出，顺序与节点一致
func (p *Pipeline) ListUnspent(ctx context.Context) ([]model.UTXO, error) {
	return callNode(ctx, p.callTimeout, p.node.ListUnspent)
}

// Balances 钱包余额 (trusted / untrusted_pending / immature)
func (p *Pipeline) Balances(ctx context.Context) (model.Balances, error) {
	return callNode(ctx, p.callTimeout, p.node.GetBalances)
}

// callNode 以单次调用超时执行 fn；超时统一归为 RpcTimeout
func callNode[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, errno.RpcTimeout) {
		var zero T
		return zero, errno.Wrap(errno.RpcTimeout, err)
	}
	return res, err
}

// reclassify 将节点返回的 RpcError 归类为具体的业务失败，保留方法名与上游信息
func reclassify(err error, kind errno.Errno) error {
	var e *errno.Err
	if !errors.As(err, &e) || e.Code != errno.RpcError.Code {
		return err
	}
	return errno.Wrap(kind, err).WithMethod(e.Method).WithDetail(e.Detail)
}

func describeSignErrors(errs []model.SignError) string {
	if len(errs) == 0 {
		return "node reported complete=false"
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s:%d %s", e.TxID, e.Vout, e.Error))
	}
	return strings.Join(parts, "; ")
}

// finish 记录指标与日志，并保证返回的错误带有种类和记录 ID
func (p *Pipeline) finish(op, id string, err error) error {
	p.metrics.ObserveTransition(op, err)
	if err == nil {
		p.log.Info("psbt "+op, zap.String("record_id", id))
		return nil
	}
	var e *errno.Err
	if !errors.As(err, &e) {
		e = errno.Wrap(errno.KindOf(err), err)
		err = e
	}
	if e.RecordID == "" && id != "" {
		e.WithRecord(id)
	}
	p.log.Warn("psbt "+op+" failed", zap.String("record_id", id), zap.Error(err))
	return err
}

// publish 在提交之后发送生命周期事件；失败只记录日志，不回滚已提交的迁移
func (p *Pipeline) publish(ctx context.Context, t event.Type, rec model.Record) {
	payload, err := json.Marshal(event.New(t, rec, p.now()))
	if err != nil {
		p.log.Error("encode event", zap.String("record_id", rec.ID), zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.producer.Publish(pubCtx, p.topic, rec.ID, payload); err != nil {
		p.log.Warn("publish event failed", zap.String("record_id", rec.ID), zap.String("type", string(t)), zap.Error(err))
	}
}
