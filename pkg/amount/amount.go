// Package amount 负责展示单位 (8 位小数) 与最小单位 (整数) 之间的无损转换。
//
// 所有金额运算都使用最小单位 int64；展示单位只出现在解析与输出边界。
// 本金向下取整，手续费向上取整。
package amount

import (
	"math"

	"wallet-psbt/pkg/errno"

	"github.com/shopspring/decimal"
)

// Decimals 展示单位的小数位数
const Decimals = 8

// BaseUnitsPerCoin 1 个展示单位对应的最小单位数量
const BaseUnitsPerCoin int64 = 100_000_000

var maxBaseUnits = decimal.NewFromInt(math.MaxInt64)

// ToBaseUnits 将展示单位金额乘以 10^8 后向下取整 (只舍不入)，
// 保证永远不会花费超过用户授权的金额。
func ToBaseUnits(display decimal.Decimal) (int64, error) {
	if display.IsNegative() {
		return 0, errno.Newf(errno.InvalidAmount, "negative amount %s", display.String())
	}
	base := display.Shift(Decimals).Floor()
	if base.GreaterThan(maxBaseUnits) {
		return 0, errno.Newf(errno.InvalidAmount, "amount %s out of range", display.String())
	}
	return base.IntPart(), nil
}

// CeilBaseUnits 将最小单位金额 (可能带小数) 向上取整，手续费专用。
func CeilBaseUnits(base decimal.Decimal) (int64, error) {
	if base.IsNegative() {
		return 0, errno.Newf(errno.InvalidAmount, "negative fee %s", base.String())
	}
	ceil := base.Ceil()
	if ceil.GreaterThan(maxBaseUnits) {
		return 0, errno.Newf(errno.InvalidAmount, "fee %s out of range", base.String())
	}
	return ceil.IntPart(), nil
}

// ToDisplay 将最小单位转换为展示单位，保留 8 位小数精度。
func ToDisplay(base int64) decimal.Decimal {
	return decimal.New(base, -Decimals)
}

// ParseDisplay 解析展示单位字符串 (例如 "1.5") 并转换为最小单位。
func ParseDisplay(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errno.Wrap(errno.InvalidAmount, err)
	}
	return ToBaseUnits(d)
}

// FormatDisplay 以固定 8 位小数输出展示单位，节点 RPC 的金额格式。
func FormatDisplay(base int64) string {
	return ToDisplay(base).StringFixed(Decimals)
}
