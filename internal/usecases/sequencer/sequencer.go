package sequencer

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/pkg/logger"
	"bridge-settle.backend/pkg/metrics"
)

// zeroAddress is the sentinel meaning "native asset" rather than an ERC-20
// token address, matching the on-chain router's own convention.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// Sequencer drives the single/batch payout state machines (spec §4.3).
type Sequencer struct {
	bridgeTx domainrepos.BridgeTransactionRepository
	uow      domainrepos.UnitOfWork
	store    StoreOps
	excl     Exclusivity
	accounts AccountResolver
	rates    domainrepos.ExchangeRateProvider
	alerter  Alerts

	// maxLossBps bounds validatingValueMatches: the payout may be worth at
	// most this many basis points less than the deposit once converted
	// through the exchange-rate side service.
	maxLossBps int64
}

func New(
	bridgeTx domainrepos.BridgeTransactionRepository,
	uow domainrepos.UnitOfWork,
	store StoreOps,
	excl Exclusivity,
	accounts AccountResolver,
	rates domainrepos.ExchangeRateProvider,
	alerter Alerts,
	maxLossBps int64,
) *Sequencer {
	return &Sequencer{
		bridgeTx: bridgeTx, uow: uow, store: store, excl: excl,
		accounts: accounts, rates: rates, alerter: alerter, maxLossBps: maxLossBps,
	}
}

// validatingValueMatches enforces the exchange-rate sanity bound between a
// deposit's source amount/symbol (bt) and its intended payout amount/symbol
// (item): the payout may never be worth more than maxLossBps less than the
// deposit once converted to a common unit (spec §4.3).
func (s *Sequencer) validatingValueMatches(ctx context.Context, bt *entities.BridgeTransaction, item *entities.TransferAmountTransaction) error {
	if s.rates == nil || s.maxLossBps <= 0 {
		return nil
	}
	sourceAmt, err := strconv.ParseFloat(bt.SourceAmount, 64)
	if err != nil {
		return domainerrors.ErrInvalidInput
	}
	targetAmt, err := strconv.ParseFloat(item.Amount, 64)
	if err != nil {
		return domainerrors.ErrInvalidInput
	}

	rate, err := s.rates.Rate(ctx, bt.SourceSymbol, item.Symbol)
	if err != nil {
		return err
	}

	expected := sourceAmt * rate
	if expected <= 0 {
		return domainerrors.ErrInvalidInput
	}

	lossBps := (expected - targetAmt) / expected * 10000
	if lossBps > float64(s.maxLossBps) {
		return domainerrors.ErrInsufficientFunds
	}
	return nil
}

// SingleSendTransactionByTransfer pops sourceId from the in-flight set,
// resolves a signing account, and runs execSingleTransfer under the
// per-sender exclusive section.
func (s *Sequencer) SingleSendTransactionByTransfer(ctx context.Context, item *entities.TransferAmountTransaction) error {
	account, err := s.accounts.Resolve(item.Chain, item.Sender)
	if err != nil {
		return domainerrors.NewSendBeforeError(err)
	}

	return s.excl.RunExclusive(ctx, item.Sender, func(ctx context.Context) error {
		return s.execSingleTransfer(ctx, item, account)
	})
}

// execSingleTransfer implements the T1/broadcast/T1-commit state machine
// from spec §4.3. T1 stays open across the broadcast attempt so that the
// 0 -> {95|98} transition is atomic with the broadcast outcome; any
// pre-broadcast failure rolls T1 back entirely, leaving the row at 0.
func (s *Sequencer) execSingleTransfer(ctx context.Context, item *entities.TransferAmountTransaction, account SenderAccount) error {
	var afterErr error

	txErr := s.uow.Do(ctx, func(ctx context.Context) error {
		bt, err := s.bridgeTx.GetBySource(ctx, item.SourceChain, item.SourceID)
		if err != nil {
			return domainerrors.NewSendBeforeError(err)
		}
		if bt.Status != entities.StatusCreated {
			return domainerrors.NewSendIgError(domainerrors.ErrAlreadyExists)
		}
		if bt.TargetID != "" {
			return domainerrors.NewSendIgError(domainerrors.ErrAlreadyExists)
		}
		if bt.TargetChain != item.Chain || bt.TargetAmount != item.Amount || bt.TargetSymbol != item.Symbol {
			return domainerrors.NewSendBeforeError(domainerrors.ErrInvalidInput)
		}
		if err := s.validatingValueMatches(ctx, bt, item); err != nil {
			return domainerrors.NewSendBeforeError(err)
		}

		if err := s.bridgeTx.MarkReadyPaid(ctx, bt.ID); err != nil {
			return domainerrors.NewSendIgError(err)
		}

		rollback, err := s.store.RemoveTransactionAndSetSerial(ctx, item.Key(), []*entities.TransferAmountTransaction{item}, item.Sender, item.Chain, item.Token, "")
		if err != nil {
			return domainerrors.NewSendBeforeError(err)
		}

		txHash, broadcastErr := s.broadcast(ctx, account, item)
		if broadcastErr == nil {
			metrics.PayoutsBroadcast.WithLabelValues(item.Chain).Inc()
			return s.bridgeTx.MarkPaidSuccess(ctx, bt.ID, txHash, account.Address())
		}

		if domainerrors.IsSendBeforeError(broadcastErr) {
			rollback()
			return broadcastErr
		}

		// After-error: the broadcast may have landed. Commit the crash
		// status instead of rolling back; the rollback thunk must NOT run.
		metrics.PayoutsCrashed.WithLabelValues(item.Chain).Inc()
		if err := s.bridgeTx.MarkPaidCrash(ctx, bt.ID, txHash, account.Address()); err != nil {
			return err
		}
		afterErr = domainerrors.NewSendAfterError(broadcastErr)
		return nil
	})

	if txErr != nil {
		if domainerrors.IsSendIgError(txErr) {
			return txErr
		}
		s.alert(ctx, "single payout failed before broadcast: "+txErr.Error())
		return txErr
	}
	if afterErr != nil {
		s.alert(ctx, "single payout crashed after broadcast: "+afterErr.Error())
		return afterErr
	}
	return nil
}

// BatchSendTransactionByTransfer accepts a group of transfers sharing
// (chain, token, sender); filters out already-sent rows and ones failing
// the value-match bound, then runs execBatchTransfer if any remain
// (spec §4.3, scenario S5).
func (s *Sequencer) BatchSendTransactionByTransfer(ctx context.Context, items []*entities.TransferAmountTransaction) error {
	if len(items) == 0 {
		return nil
	}

	filtered := make([]*entities.TransferAmountTransaction, 0, len(items))
	for _, item := range items {
		already, err := s.store.GetSerialRecord(ctx, item.SourceID)
		if err != nil {
			logger.Error(ctx, "batch payout: serial lookup failed", zap.String("sourceId", item.SourceID), zap.Error(err))
			continue
		}
		if already {
			continue
		}
		bt, err := s.bridgeTx.GetBySource(ctx, item.SourceChain, item.SourceID)
		if err != nil {
			logger.Error(ctx, "batch payout: bridge row lookup failed", zap.String("sourceId", item.SourceID), zap.Error(err))
			continue
		}
		if err := s.validatingValueMatches(ctx, bt, item); err != nil {
			logger.Warn(ctx, "batch payout: value-match rejected", zap.String("sourceId", item.SourceID), zap.Error(err))
			continue
		}
		filtered = append(filtered, item)
	}
	if len(filtered) == 0 {
		return nil
	}

	sender := filtered[0].Sender
	account, err := s.accounts.Resolve(filtered[0].Chain, sender)
	if err != nil {
		return domainerrors.NewSendBeforeError(err)
	}

	return s.excl.RunExclusive(ctx, sender, func(ctx context.Context) error {
		return s.execBatchTransfer(ctx, filtered, account)
	})
}

// execBatchTransfer lifts the single-transfer state machine over a set of
// rows: all are marked READY_PAID under one row-count check before
// broadcast, and all are demoted together on crash.
func (s *Sequencer) execBatchTransfer(ctx context.Context, items []*entities.TransferAmountTransaction, account SenderAccount) error {
	var afterErr error

	txErr := s.uow.Do(ctx, func(ctx context.Context) error {
		bts := make([]*entities.BridgeTransaction, 0, len(items))
		for _, item := range items {
			bt, err := s.bridgeTx.GetBySource(ctx, item.SourceChain, item.SourceID)
			if err != nil {
				return domainerrors.NewSendBeforeError(err)
			}
			if bt.Status != entities.StatusCreated || bt.TargetID != "" {
				return domainerrors.NewSendIgError(domainerrors.ErrAlreadyExists)
			}
			if bt.TargetChain != item.Chain || bt.TargetAmount != item.Amount || bt.TargetSymbol != item.Symbol {
				return domainerrors.NewSendBeforeError(domainerrors.ErrInvalidInput)
			}
			bts = append(bts, bt)
		}

		affected, err := s.markBatchReadyPaid(ctx, bts)
		if err != nil {
			return domainerrors.NewSendBeforeError(err)
		}
		if affected != int64(len(bts)) {
			return domainerrors.NewSendIgError(domainerrors.ErrAlreadyExists)
		}

		key := items[0].Key()
		rollback, err := s.store.RemoveTransactionAndSetSerial(ctx, key, items, items[0].Sender, items[0].Chain, items[0].Token, "")
		if err != nil {
			return domainerrors.NewSendBeforeError(err)
		}

		sourceIDs := make([]string, len(items))
		tos := make([]string, len(items))
		amounts := make([]string, len(items))
		for i, item := range items {
			sourceIDs[i] = item.SourceID
			tos[i] = item.Receiver
			amounts[i] = item.Amount
		}

		var txHash string
		var broadcastErr error
		if items[0].Token == "" || strings.EqualFold(items[0].Token, zeroAddress) {
			txHash, broadcastErr = account.Transfers(ctx, sourceIDs, tos, amounts)
		} else {
			txHash, broadcastErr = account.TransferTokens(ctx, sourceIDs, items[0].Token, tos, amounts)
		}

		if broadcastErr == nil {
			metrics.PayoutsBroadcast.WithLabelValues(items[0].Chain).Add(float64(len(bts)))
			for _, bt := range bts {
				if err := s.bridgeTx.MarkPaidSuccess(ctx, bt.ID, txHash, account.Address()); err != nil {
					return err
				}
			}
			return nil
		}

		if domainerrors.IsSendBeforeError(broadcastErr) {
			rollback()
			return broadcastErr
		}

		metrics.PayoutsCrashed.WithLabelValues(items[0].Chain).Add(float64(len(bts)))
		for _, bt := range bts {
			if err := s.bridgeTx.MarkPaidCrash(ctx, bt.ID, txHash, account.Address()); err != nil {
				return err
			}
		}
		afterErr = domainerrors.NewSendAfterError(broadcastErr)
		return nil
	})

	if txErr != nil {
		if domainerrors.IsSendIgError(txErr) {
			return txErr
		}
		s.alert(ctx, "batch payout failed before broadcast: "+txErr.Error())
		return txErr
	}
	if afterErr != nil {
		s.alert(ctx, "batch payout crashed after broadcast: "+afterErr.Error())
		return afterErr
	}
	return nil
}

func (s *Sequencer) markBatchReadyPaid(ctx context.Context, bts []*entities.BridgeTransaction) (int64, error) {
	ids := make([]uuid.UUID, len(bts))
	for i, bt := range bts {
		ids[i] = bt.ID
	}
	return s.bridgeTx.MarkReadyPaidBatch(ctx, ids)
}

func (s *Sequencer) broadcast(ctx context.Context, account SenderAccount, item *entities.TransferAmountTransaction) (string, error) {
	if item.Token == "" || strings.EqualFold(item.Token, zeroAddress) {
		return account.Transfer(ctx, []string{item.SourceID}, item.Receiver, item.Amount)
	}
	return account.TransferToken(ctx, []string{item.SourceID}, item.Token, item.Receiver, item.Amount)
}

func (s *Sequencer) alert(ctx context.Context, text string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Alert(ctx, text, "TG"); err != nil {
		logger.Error(ctx, "alert dispatch failed", zap.Error(err))
	}
}
