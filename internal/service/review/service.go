package review

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/aqmesh/station-api/internal/ledger"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
	"github.com/aqmesh/station-api/pkg/logger"
	"github.com/aqmesh/station-api/pkg/messaging"
	"github.com/aqmesh/station-api/pkg/metrics"
)

// Ledger is the slice of the gateway the approval workflow uses.
type Ledger interface {
	ListReports(ctx context.Context, address string) ([]ledger.PointerEntry, error)
	ApproveReport(ctx context.Context, signer, station string, index int) (*ledger.Receipt, error)
	FundContract(ctx context.Context, signer string, amount *big.Int) (*ledger.Receipt, error)
	ContractBalance(ctx context.Context) (*big.Int, error)
}

// Result reports the outcome of an approval. NewlyApproved is false
// when the entry was already approved and no transaction was issued,
// so callers can skip the reward message.
type Result struct {
	StationID       string   `json:"stationId"`
	ReportIndex     int      `json:"reportIndex"`
	Approved        bool     `json:"approved"`
	NewlyApproved   bool     `json:"newlyApproved"`
	ContractBalance *big.Int `json:"contractBalance,omitempty"`
}

type Service struct {
	ledger  Ledger
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(l Ledger, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		ledger:   l,
		broker:   broker,
		logger:   log,
		metrics:  m,
		inflight: make(map[string]struct{}),
	}
}

// Approve transitions one report's approval flag false→true, paying
// the fixed reward to the station in the same transaction. Already
// approved entries return immediately without a transaction. At most
// one approval per (station, index) may be in flight; a concurrent
// second attempt is rejected locally.
func (s *Service) Approve(ctx context.Context, signer, stationID string, index int) (*Result, error) {
	if !ledger.ValidAddress(stationID) {
		return nil, apperrors.NewInvalidIdentity(stationID)
	}

	entries, err := s.ledger.ListReports(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(entries) {
		return nil, apperrors.NewInvalidIndex(index, nil)
	}
	if entries[index].Approved {
		return &Result{StationID: stationID, ReportIndex: index, Approved: true}, nil
	}

	key := fmt.Sprintf("%s:%d", stationID, index)
	if !s.begin(key) {
		return nil, apperrors.NewConflict("an approval for this report is already in progress", nil)
	}
	defer s.end(key)

	if _, err := s.ledger.ApproveReport(ctx, signer, stationID, index); err != nil {
		s.countFailure(err)
		return nil, err
	}

	result := &Result{
		StationID:     stationID,
		ReportIndex:   index,
		Approved:      true,
		NewlyApproved: true,
	}

	// Balance refresh is best-effort and never reverts the approval.
	if balance, err := s.ledger.ContractBalance(ctx); err != nil {
		s.logger.Warn("balance refresh after approval failed", "station", stationID, "error", err.Error())
	} else {
		result.ContractBalance = balance
		s.metrics.SetContractBalance(balance)
	}

	if s.metrics != nil {
		s.metrics.ReportsApproved.Inc()
	}
	s.publish(ctx, "report.approved", map[string]interface{}{
		"station":     stationID,
		"reportIndex": index,
		"reviewer":    signer,
		"rewardWei":   ledger.RewardWei.String(),
	})
	s.logger.Info("report approved", "station", stationID, "index", index)
	return result, nil
}

// Fund transfers amount from the signer into the contract's reward
// pool and returns the refreshed balance (nil if the refresh failed).
func (s *Service) Fund(ctx context.Context, signer string, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperrors.NewBadRequest("funding amount must be positive", nil)
	}
	if _, err := s.ledger.FundContract(ctx, signer, amount); err != nil {
		return nil, err
	}

	balance, err := s.ledger.ContractBalance(ctx)
	if err != nil {
		s.logger.Warn("balance refresh after funding failed", "error", err.Error())
		return nil, nil
	}
	s.metrics.SetContractBalance(balance)
	return balance, nil
}

// Balance reads the contract's queryable reward-pool balance.
func (s *Service) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := s.ledger.ContractBalance(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetContractBalance(balance)
	return balance, nil
}

func (s *Service) begin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) end(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

func (s *Service) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	reason := "ledger"
	switch apperrors.CodeOf(err) {
	case apperrors.ErrAlreadyApproved:
		reason = "already_approved"
	case apperrors.ErrInvalidIndex:
		reason = "invalid_index"
	case apperrors.ErrInsufficientFunds:
		reason = "insufficient_funds"
	case apperrors.ErrRewardTransfer:
		reason = "reward_transfer"
	}
	s.metrics.ApprovalFailures.WithLabelValues(reason).Inc()
}

func (s *Service) publish(ctx context.Context, event string, payload interface{}) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, event, messaging.Message{Type: event, Payload: payload}); err != nil {
		s.logger.Warn("event publish failed", "event", event, "error", err.Error())
	}
}
