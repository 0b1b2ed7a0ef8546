package request

import (
	"wallet-psbt/internal/model"
	"wallet-psbt/pkg/errno"

	"github.com/shopspring/decimal"
)

// CreatePsbtRequest amount 为展示单位 (BTC)，fee 为最小单位 (sat)，均以字符串传入避免浮点误差
type CreatePsbtRequest struct {
	RecipientAddress string `json:"recipient_address" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Fee              string `json:"fee" binding:"required"`
	Description      string `json:"description" binding:"max=256"`
}

// ToModel 解析金额，格式错误归为 InvalidAmount
func (r CreatePsbtRequest) ToModel() (model.CreateRequest, error) {
	amt, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.CreateRequest{}, errno.Newf(errno.InvalidAmount, "amount %q is not a number", r.Amount)
	}
	fee, err := decimal.NewFromString(r.Fee)
	if err != nil {
		return model.CreateRequest{}, errno.Newf(errno.InvalidAmount, "fee %q is not a number", r.Fee)
	}
	return model.CreateRequest{
		RecipientAddress: r.RecipientAddress,
		Amount:           amt,
		Fee:              fee,
		Description:      r.Description,
	}, nil
}
