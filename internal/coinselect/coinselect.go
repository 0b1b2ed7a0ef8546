// Package coinselect picks the wallet outputs that fund a spend.
//
// Selection is first-fit over the node's listing order: outputs are
// accumulated until the required amount is covered and the scan stops
// there. The listing order is never re-sorted so the same listing always
// yields the same inputs.
package coinselect

import (
	"fmt"
	"math"

	"wallet-psbt/internal/model"
	"wallet-psbt/pkg/amount"
	"wallet-psbt/pkg/errno"
)

// InsufficientFundsError represents an error where there are not enough
// funds from unspent outputs for the requested spend plus fee.
type InsufficientFundsError struct {
	Available int64
	Required  int64
}

// Error satisfies the builtin error interface. Amounts are reported in
// display units for user-facing diagnostics.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %s, need %s",
		amount.ToDisplay(e.Available).String(), amount.ToDisplay(e.Required).String())
}

// Is makes errors.Is(err, errno.InsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	kind, ok := target.(errno.Errno)
	return ok && kind.Code == errno.InsufficientFunds.Code
}

// Select returns the first-fit prefix of utxos whose total covers required.
func Select(utxos []model.UTXO, required int64) (model.Selection, error) {
	if required <= 0 {
		return model.Selection{}, errno.Newf(errno.InvalidAmount, "required amount must be positive, got %d", required)
	}
	if len(utxos) == 0 {
		return model.Selection{}, errno.New(errno.NoUtxosAvailable).
			WithDetail("please ensure the wallet has funds")
	}

	var sel model.Selection
	for _, u := range utxos {
		if sel.Total >= required {
			break
		}
		if u.Amount < 0 || u.Amount > math.MaxInt64-sel.Total {
			return model.Selection{}, errno.Newf(errno.InvalidAmount,
				"utxo %s:%d amount %d out of range", u.TxID, u.Vout, u.Amount)
		}
		sel.Inputs = append(sel.Inputs, u)
		sel.Total += u.Amount
	}

	if sel.Total < required {
		return model.Selection{}, &InsufficientFundsError{Available: sel.Total, Required: required}
	}

	sel.Change = sel.Total - required
	return sel, nil
}
