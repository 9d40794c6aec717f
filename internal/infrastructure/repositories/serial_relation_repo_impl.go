package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bridge-settle.backend/internal/domain/entities"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/internal/infrastructure/models"
)

type serialRelationRepo struct {
	db *gorm.DB
}

func NewSerialRelationRepository(db *gorm.DB) domainrepos.SerialRelationRepository {
	return &serialRelationRepo{db: db}
}

func (r *serialRelationRepo) Exists(ctx context.Context, sourceID string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).WithContext(ctx).Model(&models.SerialRelation{}).
		Where("source_id = ?", sourceID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save is called outside the bridge-row transaction (spec §5, §9): it
// always runs against the base db, never the tx injected via context, so a
// crash right after broadcast still leaves this anchor committed.
func (r *serialRelationRepo) Save(ctx context.Context, sourceIDs []string, sender, chain, token, targetHash string) error {
	now := time.Now()
	rows := make([]models.SerialRelation, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		rows = append(rows, models.SerialRelation{
			SourceID:   id,
			Sender:     sender,
			Chain:      chain,
			Token:      token,
			TargetHash: targetHash,
			CreatedAt:  now,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *serialRelationRepo) GetByTargetHash(ctx context.Context, targetHash string) ([]*entities.SerialRelation, error) {
	var rows []models.SerialRelation
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("target_hash = ?", targetHash).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.SerialRelation, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entities.SerialRelation{
			ID:         m.ID,
			SourceID:   m.SourceID,
			Sender:     m.Sender,
			Chain:      m.Chain,
			Token:      m.Token,
			TargetHash: m.TargetHash,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}

// ListUnreconciled joins against bridge_transactions to find serial records
// whose bridge row is still stuck at StatusReadyPaid, the signature of a
// process that died between broadcast and the post-broadcast commit.
func (r *serialRelationRepo) ListUnreconciled(ctx context.Context) ([]*entities.SerialRelation, error) {
	var rows []models.SerialRelation
	err := r.db.WithContext(ctx).
		Table("serial_relations AS sr").
		Select("sr.*").
		Joins("JOIN bridge_transactions AS bt ON bt.source_id = sr.source_id").
		Where("bt.status = ?", int(entities.StatusReadyPaid)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*entities.SerialRelation, 0, len(rows))
	for _, m := range rows {
		out = append(out, &entities.SerialRelation{
			ID:         m.ID,
			SourceID:   m.SourceID,
			Sender:     m.Sender,
			Chain:      m.Chain,
			Token:      m.Token,
			TargetHash: m.TargetHash,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}
