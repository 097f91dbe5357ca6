package service

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sarthakg043/ewallet-guildup/internal/model"

	"github.com/shopspring/decimal"
)

// 记账服务对外暴露的错误，调用方使用 errors.Is 判断
var (
	ErrInvalidAmount       = errors.New("金额必须为正数且最多4位小数")
	ErrAccountNotFound     = errors.New("账户不存在")
	ErrInsufficientFunds   = errors.New("余额不足")
	ErrTransientStore      = errors.New("系统繁忙，请重试") // 整个操作已回滚，可以安全重试
	ErrTransactionNotFound = errors.New("流水不存在")
	ErrUsernameTaken       = errors.New("用户名已被占用")
	ErrInvalidUsername     = errors.New("用户名格式错误")
)

const (
	amountScale    = 4
	maxAmountExp   = 32 // 指数和有效位数的上限
	maxDescription = 256
)

// ParseAmount 解析十进制金额字符串
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	// 先挡住 1e1000000 这类输入，后面的比较会按指数放大系数
	if exp := amount.Exponent(); exp > maxAmountExp || exp < -maxAmountExp || amount.NumDigits() > maxAmountExp {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return ErrInvalidAmount
	}
	if !amount.LessThan(model.MaxBalance) {
		return ErrInvalidAmount
	}
	return nil
}

func normalizeDescription(desc, fallback string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return fallback
	}
	if utf8.RuneCountInString(desc) > maxDescription {
		desc = string([]rune(desc)[:maxDescription])
	}
	return desc
}
