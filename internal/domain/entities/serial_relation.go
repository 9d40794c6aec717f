package entities

import "time"

// SerialRelation is the durable per-sender record {sourceId -> payoutHash}
// written synchronously before broadcast. It is the only record that
// survives a crash between broadcast and bridge-row commit, and is the
// anchor the startup reconciler uses to recover a payout's true on-chain
// fate (spec §5, §9).
type SerialRelation struct {
	ID         int64
	SourceID   string
	Sender     string
	Chain      string
	Token      string
	TargetHash string
	CreatedAt  time.Time
}
