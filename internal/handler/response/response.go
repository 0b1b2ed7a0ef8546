package response

import (
	"errors"
	"net/http"
	"time"

	"wallet-psbt/internal/model"
	"wallet-psbt/pkg/amount"
	"wallet-psbt/pkg/errno"

	"github.com/gin-gonic/gin"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// ErrorData 错误响应携带的上下文
type ErrorData struct {
	RecordID string `json:"record_id,omitempty"`
	Method   string `json:"method,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response. HTTP 状态码由错误种类决定，code 字段保留错误码。
func Error(c *gin.Context, err error) {
	kind := errno.KindOf(err)

	var data ErrorData
	var ctxErr *errno.Err
	if errors.As(err, &ctxErr) {
		data = ErrorData{RecordID: ctxErr.RecordID, Method: ctxErr.Method, Detail: ctxErr.Detail}
	} else if err.Error() != kind.Message {
		data.Detail = err.Error()
	}

	c.JSON(StatusOf(kind), Response{
		Code:    kind.Code,
		Message: kind.Message,
		Data:    data,
	})
}

// StatusOf maps an error kind to an HTTP status.
func StatusOf(kind errno.Errno) int {
	switch kind {
	case errno.OK:
		return http.StatusOK
	case errno.ErrBind, errno.InvalidAddress, errno.InvalidAmount:
		return http.StatusBadRequest
	case errno.RecordNotFound:
		return http.StatusNotFound
	case errno.InvalidTransition:
		return http.StatusConflict
	case errno.NoUtxosAvailable, errno.InsufficientFunds, errno.SigningFailed, errno.IncompleteSigning:
		return http.StatusUnprocessableEntity
	case errno.BroadcastRejected, errno.RpcConnectionFailure, errno.RpcError, errno.SchemaMismatch:
		return http.StatusBadGateway
	case errno.RpcTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// PsbtRecord 对外展示的 PSBT 记录，金额同时给出展示单位和最小单位
type PsbtRecord struct {
	ID               string           `json:"id"`
	Status           model.Status     `json:"status"`
	RecipientAddress string           `json:"recipient_address"`
	Amount           string           `json:"amount"`
	AmountBaseUnits  int64            `json:"amount_base_units"`
	Fee              string           `json:"fee"`
	Description      string           `json:"description,omitempty"`
	Psbt             string           `json:"psbt"`
	TxID             string           `json:"txid,omitempty"`
	Inputs           []model.OutPoint `json:"inputs,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

func NewPsbtRecord(rec model.Record) PsbtRecord {
	return PsbtRecord{
		ID:               rec.ID,
		Status:           rec.Status,
		RecipientAddress: rec.RecipientAddress,
		Amount:           amount.FormatDisplay(rec.AmountBaseUnits),
		AmountBaseUnits:  rec.AmountBaseUnits,
		Fee:              rec.Fee.String(),
		Description:      rec.Description,
		Psbt:             rec.EncodedTx,
		TxID:             rec.FinalTxID,
		Inputs:           rec.Inputs,
		CreatedAt:        rec.CreatedAt,
	}
}

func NewPsbtList(recs []model.Record) []PsbtRecord {
	out := make([]PsbtRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, NewPsbtRecord(rec))
	}
	return out
}

type Utxo struct {
	TxID            string `json:"txid"`
	Vout            uint32 `json:"vout"`
	Address         string `json:"address"`
	Amount          string `json:"amount"`
	AmountBaseUnits int64  `json:"amount_base_units"`
	Confirmations   int64  `json:"confirmations"`
}

type UtxoList struct {
	Items                []Utxo `json:"items"`
	Count                int    `json:"count"`
	TotalAmount          string `json:"total_amount"`
	TotalAmountBaseUnits int64  `json:"total_amount_base_units"`
}

// NewUtxoList 合计在 ListUnspent 的单笔上限之下不会溢出 int64
func NewUtxoList(utxos []model.UTXO) UtxoList {
	out := UtxoList{Items: make([]Utxo, 0, len(utxos)), Count: len(utxos)}
	for _, u := range utxos {
		out.Items = append(out.Items, Utxo{
			TxID:            u.TxID,
			Vout:            u.Vout,
			Address:         u.Address,
			Amount:          amount.FormatDisplay(u.Amount),
			AmountBaseUnits: u.Amount,
			Confirmations:   u.Confirmations,
		})
		out.TotalAmountBaseUnits += u.Amount
	}
	out.TotalAmount = amount.FormatDisplay(out.TotalAmountBaseUnits)
	return out
}

// Balance 展示单位字符串 + 最小单位整数
type Balance struct {
	Trusted                   string `json:"trusted"`
	TrustedBaseUnits          int64  `json:"trusted_base_units"`
	UntrustedPending          string `json:"untrusted_pending"`
	UntrustedPendingBaseUnits int64  `json:"untrusted_pending_base_units"`
	Immature                  string `json:"immature"`
	ImmatureBaseUnits         int64  `json:"immature_base_units"`
}

func NewBalance(b model.Balances) Balance {
	return Balance{
		Trusted:                   amount.FormatDisplay(b.Trusted),
		TrustedBaseUnits:          b.Trusted,
		UntrustedPending:          amount.FormatDisplay(b.UntrustedPending),
		UntrustedPendingBaseUnits: b.UntrustedPending,
		Immature:                  amount.FormatDisplay(b.Immature),
		ImmatureBaseUnits:         b.Immature,
	}
}
