package models

import "time"

// SerialRelation is the GORM row for entities.SerialRelation.
type SerialRelation struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	SourceID   string `gorm:"column:source_id;type:varchar(255);uniqueIndex"`
	Sender     string `gorm:"column:sender;type:varchar(255);index"`
	Chain      string `gorm:"column:chain;type:varchar(50)"`
	Token      string `gorm:"column:token;type:varchar(255)"`
	TargetHash string `gorm:"column:target_hash;type:varchar(255);index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (SerialRelation) TableName() string {
	return "serial_relations"
}
