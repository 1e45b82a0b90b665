package ledger

import (
	"context"
	"math/big"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/aqmesh/station-api/pkg/errors"
	"github.com/aqmesh/station-api/pkg/metrics"
)

// RewardWei is the fixed reward paid to a station per approved report.
// The contract exposes no setter, so it is a protocol constant.
var RewardWei = big.NewInt(1_000_000_000_000_000_000)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a well-formed ledger address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// PointerEntry is the ledger-native report entry: a content pointer
// plus the approval flag. Its position in the list is the report index
// the approval transaction operates on.
type PointerEntry struct {
	ContentID string `json:"hash"`
	Approved  bool   `json:"approved"`
}

// Gateway wraps the opaque ledger client with the typed contract
// surface. Reads fail with LedgerReadError; writes are classified per
// revert reason.
type Gateway struct {
	client   Client
	contract string
	metrics  *metrics.Metrics
}

func NewGateway(client Client, contractAddress string, m *metrics.Metrics) *Gateway {
	return &Gateway{
		client:   client,
		contract: contractAddress,
		metrics:  m,
	}
}

func (g *Gateway) IsStation(ctx context.Context, address string) (bool, error) {
	var ok bool
	if err := g.call(ctx, &ok, "isDr", address); err != nil {
		return false, apperrors.NewLedgerRead("isDr", err)
	}
	return ok, nil
}

func (g *Gateway) StationContentID(ctx context.Context, address string) (string, error) {
	var contentID string
	if err := g.call(ctx, &contentID, "getDr", address); err != nil {
		return "", apperrors.NewLedgerRead("getDr", err)
	}
	return contentID, nil
}

func (g *Gateway) ListReports(ctx context.Context, address string) ([]PointerEntry, error) {
	var entries []PointerEntry
	if err := g.call(ctx, &entries, "getReports", address); err != nil {
		return nil, apperrors.NewLedgerRead("getReports", err)
	}
	return entries, nil
}

func (g *Gateway) IsPatient(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := g.call(ctx, &ok, "isPat", id); err != nil {
		return false, apperrors.NewLedgerRead("isPat", err)
	}
	return ok, nil
}

func (g *Gateway) PatientInfo(ctx context.Context, id string) (string, error) {
	var contentID string
	if err := g.call(ctx, &contentID, "getPatInfo", id); err != nil {
		return "", apperrors.NewLedgerRead("getPatInfo", err)
	}
	return contentID, nil
}

// MedicalRecordPointer returns the patient's current bundle pointer,
// or the empty string when no bundle has been recorded yet.
func (g *Gateway) MedicalRecordPointer(ctx context.Context, id string) (string, error) {
	var contentID string
	if err := g.call(ctx, &contentID, "viewMedRec", id); err != nil {
		return "", apperrors.NewLedgerRead("viewMedRec", err)
	}
	return contentID, nil
}

// SubmitReport appends {contentID, approved=false} to the signer's own
// report list. The submitting station is the transaction signer, not a
// parameter.
func (g *Gateway) SubmitReport(ctx context.Context, signer, contentID string) (*Receipt, error) {
	receipt, err := g.send(ctx, SendOpts{From: signer}, "addReport", contentID)
	if err != nil {
		return nil, apperrors.NewLedgerWrite("addReport", err)
	}
	return receipt, nil
}

// ApproveReport flips a single entry's approval flag and pays the
// fixed reward to the station within the same transaction.
func (g *Gateway) ApproveReport(ctx context.Context, signer, station string, index int) (*Receipt, error) {
	receipt, err := g.send(ctx, SendOpts{From: signer}, "approveReport", station, index)
	if err != nil {
		return nil, classifyApprovalError(index, err)
	}
	return receipt, nil
}

// AddMedicalRecord updates the patient's bundle pointer. The previous
// pointer is sent as a compare-and-swap precondition so concurrent
// writers cannot silently overwrite each other's appends.
func (g *Gateway) AddMedicalRecord(ctx context.Context, signer, contentID, patientID, prevContentID string) (*Receipt, error) {
	receipt, err := g.send(ctx, SendOpts{From: signer}, "addMedRecord", contentID, patientID, prevContentID)
	if err != nil {
		if containsReason(err, "stale record pointer") {
			return nil, apperrors.NewConflict("the patient's record was updated by another writer, retry the append", err)
		}
		return nil, apperrors.NewLedgerWrite("addMedRecord", err)
	}
	return receipt, nil
}

func (g *Gateway) FundContract(ctx context.Context, signer string, amount *big.Int) (*Receipt, error) {
	receipt, err := g.send(ctx, SendOpts{From: signer, Value: amount}, "fundContract")
	if err != nil {
		return nil, apperrors.NewLedgerWrite("fundContract", err)
	}
	return receipt, nil
}

func (g *Gateway) ContractBalance(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	balance, err := g.client.BalanceAt(ctx, g.contract)
	g.observe("getBalance", start, err)
	if err != nil {
		return nil, apperrors.NewLedgerRead("getBalance", err)
	}
	return balance, nil
}

func (g *Gateway) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	err := g.client.Call(ctx, result, method, args...)
	g.observe(method, start, err)
	return err
}

func (g *Gateway) send(ctx context.Context, opts SendOpts, method string, args ...interface{}) (*Receipt, error) {
	start := time.Now()
	receipt, err := g.client.Send(ctx, opts, method, args...)
	g.observe(method, start, err)
	return receipt, err
}

func (g *Gateway) observe(method string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.LedgerCalls.WithLabelValues(method, status).Inc()
	g.metrics.LedgerLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// classifyApprovalError maps the contract's revert reasons onto the
// error taxonomy. Unknown reasons stay a plain ledger write failure.
func classifyApprovalError(index int, err error) error {
	switch {
	case containsReason(err, "Already approved"):
		return apperrors.NewAlreadyApproved(index, err)
	case containsReason(err, "Invalid report index"):
		return apperrors.NewInvalidIndex(index, err)
	case containsReason(err, "Contract needs more ETH"):
		return apperrors.NewInsufficientFunds(err)
	case containsReason(err, "Reward transfer failed"):
		return apperrors.NewRewardTransfer(err)
	default:
		return apperrors.NewLedgerWrite("approveReport", err)
	}
}

func containsReason(err error, reason string) bool {
	return err != nil && strings.Contains(err.Error(), reason)
}
