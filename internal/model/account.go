package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 用户钱包账户表
// 余额只允许由记账引擎修改，任何时刻都不能为负
type Account struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"` // 转账收款方通过用户名定位
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	Version   int             `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MaxBalance decimal(20,4) 能表示的上界（不含），单笔金额和账户余额都必须小于它
var MaxBalance = decimal.New(1, 16)

func (Account) TableName() string {
	return "account"
}
