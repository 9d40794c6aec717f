package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/internal/infrastructure/models"
	"bridge-settle.backend/pkg/utils"
)

type bridgeTransactionRepo struct {
	db *gorm.DB
}

func NewBridgeTransactionRepository(db *gorm.DB) domainrepos.BridgeTransactionRepository {
	return &bridgeTransactionRepo{db: db}
}

func toModel(b *entities.BridgeTransaction) *models.BridgeTransaction {
	m := &models.BridgeTransaction{
		ID:              b.ID,
		SourceChain:     b.SourceChain,
		SourceID:        b.SourceID,
		SourceAddress:   b.SourceAddress,
		SourceMaker:     b.SourceMaker,
		SourceAmount:    b.SourceAmount,
		SourceSymbol:    b.SourceSymbol,
		SourceToken:     b.SourceToken,
		SourceNonce:     b.SourceNonce,
		SourceTime:      b.SourceTime,
		TargetChain:     b.TargetChain,
		TargetID:        b.TargetID,
		TargetAddress:   b.TargetAddress,
		TargetAmount:    b.TargetAmount,
		TargetSymbol:    b.TargetSymbol,
		TargetToken:     b.TargetToken,
		TargetMaker:     b.TargetMaker,
		TargetNonce:     b.TargetNonce,
		TargetFee:       b.TargetFee,
		TargetFeeSymbol: b.TargetFeeSymbol,
		RuleID:          b.RuleID,
		EBCAddress:      b.EBCAddress,
		DealerAddress:   b.DealerAddress,
		WithholdingFee:  b.WithholdingFee,
		TradeFee:        b.TradeFee,
		ResponseMaker:   strings.Join(b.ResponseMaker, ","),
		Status:          int(b.Status),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.TargetTime != nil {
		m.TargetTime = null.TimeFrom(*b.TargetTime)
	}
	return m
}

func fromModel(m *models.BridgeTransaction) *entities.BridgeTransaction {
	b := &entities.BridgeTransaction{
		ID:              m.ID,
		SourceChain:     m.SourceChain,
		SourceID:        m.SourceID,
		SourceAddress:   m.SourceAddress,
		SourceMaker:     m.SourceMaker,
		SourceAmount:    m.SourceAmount,
		SourceSymbol:    m.SourceSymbol,
		SourceToken:     m.SourceToken,
		SourceNonce:     m.SourceNonce,
		SourceTime:      m.SourceTime,
		TargetChain:     m.TargetChain,
		TargetID:        m.TargetID,
		TargetAddress:   m.TargetAddress,
		TargetAmount:    m.TargetAmount,
		TargetSymbol:    m.TargetSymbol,
		TargetToken:     m.TargetToken,
		TargetMaker:     m.TargetMaker,
		TargetNonce:     m.TargetNonce,
		TargetFee:       m.TargetFee,
		TargetFeeSymbol: m.TargetFeeSymbol,
		RuleID:          m.RuleID,
		EBCAddress:      m.EBCAddress,
		DealerAddress:   m.DealerAddress,
		WithholdingFee:  m.WithholdingFee,
		TradeFee:        m.TradeFee,
		Status:          entities.BridgeStatus(m.Status),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.ResponseMaker != "" {
		b.ResponseMaker = strings.Split(m.ResponseMaker, ",")
	}
	if m.TargetTime.Valid {
		t := m.TargetTime.Time
		b.TargetTime = &t
	}
	return b
}

func (r *bridgeTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.BridgeTransaction, error) {
	var m models.BridgeTransaction
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return fromModel(&m), nil
}

func (r *bridgeTransactionRepo) GetBySourceID(ctx context.Context, sourceID string) (*entities.BridgeTransaction, error) {
	var m models.BridgeTransaction
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("source_id = ?", sourceID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return fromModel(&m), nil
}

func (r *bridgeTransactionRepo) GetBySource(ctx context.Context, sourceChain, sourceID string) (*entities.BridgeTransaction, error) {
	var m models.BridgeTransaction
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("source_chain = ? AND source_id = ?", sourceChain, sourceID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return fromModel(&m), nil
}

func (r *bridgeTransactionRepo) GetByTarget(ctx context.Context, targetChain, targetID string) (*entities.BridgeTransaction, error) {
	var m models.BridgeTransaction
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("target_chain = ? AND target_id = ?", targetChain, targetID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return fromModel(&m), nil
}

// closableStatuses mirrors entities.BridgeStatus.Closable().
var closableStatuses = []int{int(entities.StatusCreated), int(entities.StatusSendFailed), int(entities.StatusPaidCrash)}

func (r *bridgeTransactionRepo) FindClosableByContent(ctx context.Context, q domainrepos.ContentMatchQuery) (*entities.BridgeTransaction, error) {
	// destTs-120min <= sourceTs <= destTs+5min (spec §4.2 step 1/§8 scenario S6).
	windowStart := time.Unix(q.DestTimestamp, 0).Add(-120 * time.Minute)
	windowEnd := time.Unix(q.DestTimestamp, 0).Add(5 * time.Minute)

	var rows []models.BridgeTransaction
	err := GetDB(ctx, r.db).WithContext(ctx).
		Where("status IN ?", closableStatuses).
		Where("target_chain = ? AND target_symbol = ? AND target_address = ? AND target_amount = ?",
			q.TargetChain, q.TargetSymbol, q.TargetAddress, q.TargetAmount).
		Where("source_time BETWEEN ? AND ?", windowStart, windowEnd).
		Where("response_maker LIKE ?", "%"+strings.ToLower(q.Sender)+"%").
		Order("source_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, m := range rows {
		row := fromModel(&m)
		if row.HasResponder(q.Sender) {
			return row, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r *bridgeTransactionRepo) Upsert(ctx context.Context, tx *entities.BridgeTransaction) (bool, bool, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var existing models.BridgeTransaction
	err := db.Where("source_chain = ? AND source_id = ?", tx.SourceChain, tx.SourceID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if tx.ID == uuid.Nil {
			tx.ID = utils.GenerateUUIDv7()
		}
		now := time.Now()
		tx.CreatedAt = now
		tx.UpdatedAt = now
		m := toModel(tx)
		if err := db.Create(m).Error; err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}

	if entities.BridgeStatus(existing.Status).InOperation() {
		return false, true, nil
	}

	tx.ID = existing.ID
	tx.Status = entities.BridgeStatus(existing.Status)
	tx.UpdatedAt = time.Now()
	m := toModel(tx)
	result := db.Model(&models.BridgeTransaction{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
		"target_chain":      m.TargetChain,
		"target_id":         m.TargetID,
		"rule_id":           m.RuleID,
		"ebc_address":       m.EBCAddress,
		"dealer_address":    m.DealerAddress,
		"withholding_fee":   m.WithholdingFee,
		"trade_fee":         m.TradeFee,
		"response_maker":    m.ResponseMaker,
		"updated_at":        m.UpdatedAt,
	})
	if result.Error != nil {
		return false, false, result.Error
	}
	return false, false, nil
}

func (r *bridgeTransactionRepo) MarkReadyPaid(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id = ? AND status = ? AND target_id = ''", id, int(entities.StatusCreated)).
		Updates(map[string]interface{}{"status": int(entities.StatusReadyPaid), "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *bridgeTransactionRepo) MarkReadyPaidBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id IN ? AND status = ? AND target_id = ''", ids, int(entities.StatusCreated)).
		Updates(map[string]interface{}{"status": int(entities.StatusReadyPaid), "updated_at": time.Now()})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *bridgeTransactionRepo) MarkPaidSuccess(ctx context.Context, id uuid.UUID, targetID, targetMaker string) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id = ? AND status = ?", id, int(entities.StatusReadyPaid)).
		Updates(map[string]interface{}{
			"status":       int(entities.StatusPaidSuccess),
			"target_id":    targetID,
			"target_maker": targetMaker,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *bridgeTransactionRepo) MarkPaidCrash(ctx context.Context, id uuid.UUID, targetID, targetMaker string) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       int(entities.StatusPaidCrash),
			"target_id":    targetID,
			"target_maker": targetMaker,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *bridgeTransactionRepo) MarkSendFailed(ctx context.Context, id uuid.UUID, targetID string) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id = ? AND status IN ?", id, []int{int(entities.StatusReadyPaid), int(entities.StatusPaidCrash), int(entities.StatusPaidSuccess)}).
		Updates(map[string]interface{}{
			"status":     int(entities.StatusSendFailed),
			"target_id":  targetID,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *bridgeTransactionRepo) RevertToCreated(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id = ? AND status = ?", id, int(entities.StatusReadyPaid)).
		Updates(map[string]interface{}{"status": int(entities.StatusCreated), "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *bridgeTransactionRepo) MarkBridgeSuccess(ctx context.Context, id uuid.UUID, targetMaker string) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id = ? AND status IN ?", id, []int{int(entities.StatusPaidSuccess), int(entities.StatusPaidCrash)}).
		Updates(map[string]interface{}{
			"status":       int(entities.StatusBridgeSuccess),
			"target_maker": targetMaker,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *bridgeTransactionRepo) CloseMatch(ctx context.Context, id uuid.UUID, fields domainrepos.CloseFields) error {
	status := int(entities.StatusSendFailed)
	if fields.Success {
		status = int(entities.StatusBridgeSuccess)
	}

	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).
		Where("id = ? AND status IN ?", id, closableStatuses).
		Updates(map[string]interface{}{
			"status":            status,
			"target_id":         fields.TargetID,
			"target_time":       time.Unix(fields.TargetTime, 0),
			"target_fee":        fields.TargetFee,
			"target_fee_symbol": fields.TargetFeeSymbol,
			"target_nonce":      fields.TargetNonce,
			"target_maker":      fields.TargetMaker,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *bridgeTransactionRepo) ListByStatus(ctx context.Context, status entities.BridgeStatus, offset, limit int) ([]*entities.BridgeTransaction, int64, error) {
	db := GetDB(ctx, r.db).WithContext(ctx).Model(&models.BridgeTransaction{}).Where("status = ?", int(status))

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BridgeTransaction
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*entities.BridgeTransaction, len(rows))
	for i := range rows {
		out[i] = fromModel(&rows[i])
	}
	return out, total, nil
}
