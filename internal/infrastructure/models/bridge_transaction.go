package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// BridgeTransaction is the GORM row for entities.BridgeTransaction.
// ResponseMaker is stored as a comma-joined lowercase address list; the
// repository layer applies the containment predicate required by spec §6
// with a LIKE clause (Postgres array/JSONB containment is the production
// choice, but a portable LIKE keeps the sqlite-backed unit tests honest).
type BridgeTransaction struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	SourceChain   string `gorm:"column:source_chain;type:varchar(50);not null;uniqueIndex:idx_source"`
	SourceID      string `gorm:"column:source_id;type:varchar(255);not null;uniqueIndex:idx_source"`
	SourceAddress string `gorm:"column:source_address;type:varchar(255)"`
	SourceMaker   string `gorm:"column:source_maker;type:varchar(255)"`
	SourceAmount  string `gorm:"column:source_amount;type:varchar(100)"`
	SourceSymbol  string `gorm:"column:source_symbol;type:varchar(50)"`
	SourceToken   string `gorm:"column:source_token;type:varchar(255)"`
	SourceNonce   string `gorm:"column:source_nonce;type:varchar(50)"`
	SourceTime    time.Time `gorm:"column:source_time"`

	TargetChain     string    `gorm:"column:target_chain;type:varchar(50);index:idx_target"`
	TargetID        string    `gorm:"column:target_id;type:varchar(255);index:idx_target"`
	TargetAddress   string    `gorm:"column:target_address;type:varchar(255);index:idx_content"`
	TargetAmount    string    `gorm:"column:target_amount;type:varchar(100);index:idx_content"`
	TargetSymbol    string    `gorm:"column:target_symbol;type:varchar(50);index:idx_content"`
	TargetToken     string    `gorm:"column:target_token;type:varchar(255)"`
	TargetMaker     string    `gorm:"column:target_maker;type:varchar(255)"`
	TargetTime      null.Time `gorm:"column:target_time"`
	TargetNonce     string    `gorm:"column:target_nonce;type:varchar(50)"`
	TargetFee       string    `gorm:"column:target_fee;type:varchar(100)"`
	TargetFeeSymbol string    `gorm:"column:target_fee_symbol;type:varchar(50)"`

	RuleID         string `gorm:"column:rule_id;type:varchar(100)"`
	EBCAddress     string `gorm:"column:ebc_address;type:varchar(255)"`
	DealerAddress  string `gorm:"column:dealer_address;type:varchar(255)"`
	WithholdingFee string `gorm:"column:withholding_fee;type:varchar(100)"`
	TradeFee       string `gorm:"column:trade_fee;type:varchar(100)"`
	ResponseMaker  string `gorm:"column:response_maker;type:text"`

	Status int `gorm:"column:status;not null;default:0;index:idx_content"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (BridgeTransaction) TableName() string {
	return "bridge_transactions"
}
