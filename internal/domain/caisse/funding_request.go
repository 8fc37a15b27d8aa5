package caisse

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AggregateTypeFundingRequest is the aggregate type name used in events
const AggregateTypeFundingRequest = "FundingRequest"

// Stage is a node of the funding request approval graph
type Stage string

const (
	StageInitialRequest Stage = "initial_request"
	StageCorrected      Stage = "corrected"
	StageApproved       Stage = "approved"
	StageRejected       Stage = "rejected"
)

// ParseStage parses a stage name
func ParseStage(s string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(s)))
	switch stage {
	case StageInitialRequest, StageCorrected, StageApproved, StageRejected:
		return stage, nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", "unknown funding request stage: "+s)
}

// String returns the string representation of Stage
func (s Stage) String() string {
	return string(s)
}

// IsTerminal returns true for approved and rejected
func (s Stage) IsTerminal() bool {
	return s == StageApproved || s == StageRejected
}

// CanTransitionTo reports whether the graph has an edge from s to target
func (s Stage) CanTransitionTo(target Stage) bool {
	switch s {
	case StageInitialRequest:
		return target == StageCorrected || target == StageApproved || target == StageRejected
	case StageCorrected:
		return target == StageApproved || target == StageRejected
	}
	return false
}

// Status mirrors the current stage
func (s Stage) Status() FundingStatus {
	switch s {
	case StageCorrected:
		return FundingStatusPending
	case StageApproved:
		return FundingStatusPaid
	case StageRejected:
		return FundingStatusRejected
	}
	return FundingStatusInitial
}

// FundingStatus is the externally visible status of a funding request
type FundingStatus string

const (
	FundingStatusInitial  FundingStatus = "INITIAL"
	FundingStatusPending  FundingStatus = "PENDING"
	FundingStatusPaid     FundingStatus = "PAID"
	FundingStatusRejected FundingStatus = "REJECTED"
)

// String returns the string representation of FundingStatus
func (s FundingStatus) String() string {
	return string(s)
}

// Direction tells whether approval adds cash to or removes cash from the register
type Direction string

const (
	DirectionDeposit Direction = "deposit"
	DirectionPayout  Direction = "payout"
)

// ParseDirection parses a direction; empty means deposit
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DirectionDeposit, nil
	case DirectionDeposit, DirectionPayout:
		return d, nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", "unknown funding direction: "+s)
}

// HistoryEntry is one step of the stage history
type HistoryEntry struct {
	Stage   Stage     `json:"stage"`
	At      time.Time `json:"at"`
	ActorID uuid.UUID `json:"actor_id"`
	Detail  string    `json:"detail,omitempty"`
}

// History is stored as a JSON column
type History []HistoryEntry

// Value implements driver.Valuer interface for GORM to store as JSONB
func (h History) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (h *History) Scan(value any) error {
	return scanJSON(value, h, "History")
}

// ChequeDetails identifies a cheque disbursement
type ChequeDetails struct {
	Number string `json:"number"`
	Bank   string `json:"bank"`
}

// TransferDetails identifies a bank transfer disbursement
type TransferDetails struct {
	Reference string `json:"reference"`
	Bank      string `json:"bank"`
}

// Disbursement records how an approved request was paid out
type Disbursement struct {
	Method     string           `json:"method"`
	ApproverID uuid.UUID        `json:"approver_id"`
	Cheque     *ChequeDetails   `json:"cheque,omitempty"`
	Transfer   *TransferDetails `json:"transfer,omitempty"`
}

// IsZero returns true when no disbursement was recorded
func (d Disbursement) IsZero() bool {
	return d.Method == ""
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (d Disbursement) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (d *Disbursement) Scan(value any) error {
	return scanJSON(value, d, "Disbursement")
}

// TransitionInput carries the optional data of a stage transition
type TransitionInput struct {
	Detail          string
	PaymentMethod   string
	Cheque          *ChequeDetails
	Transfer        *TransferDetails
	CorrectedAmount *decimal.Decimal
}

// TransitionOutcome tells the caller what the transition requires from the
// ledger. Movement is nil unless the balance must change.
type TransitionOutcome struct {
	Movement *Movement
	NoOp     bool
}

// FundingRequest asks for cash to be added to (or taken from) the register
type FundingRequest struct {
	shared.BaseAggregateRoot
	Number          string               `json:"number"`
	RequesterID     uuid.UUID            `json:"requester_id"`
	Amount          decimal.Decimal      `json:"amount"`
	CorrectedAmount *decimal.Decimal     `json:"corrected_amount,omitempty"`
	Currency        valueobject.Currency `json:"currency"`
	Reason          string               `json:"reason"`
	RequestedDate   time.Time            `json:"requested_date"`
	Direction       Direction            `json:"direction"`
	Stage           Stage                `json:"stage"`
	Status          FundingStatus        `json:"status"`
	History         History              `json:"history"`
	Disbursement    *Disbursement        `json:"disbursement,omitempty"`
	Changed         bool                 `json:"changed"`
}

// NewFundingRequest creates a funding request in the initial stage
func NewFundingRequest(number string, requesterID uuid.UUID, amount valueobject.Money, reason string, requestedDate time.Time, direction Direction) (*FundingRequest, error) {
	reason = strings.TrimSpace(reason)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Funding request number cannot be empty")
	}
	if requesterID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Requester ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if !amount.Currency().IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unsupported currency: "+amount.Currency().String())
	}
	if err := shared.CheckAmountScale(amount.Amount(), amount.Currency()); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Reason is required")
	}
	if requestedDate.IsZero() {
		requestedDate = time.Now()
	}
	if direction == "" {
		direction = DirectionDeposit
	}

	fr := &FundingRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		RequesterID:       requesterID,
		Amount:            amount.Amount(),
		Currency:          amount.Currency(),
		Reason:            reason,
		RequestedDate:     requestedDate,
		Direction:         direction,
		Stage:             StageInitialRequest,
		Status:            StageInitialRequest.Status(),
		History: History{{
			Stage:   StageInitialRequest,
			At:      time.Now(),
			ActorID: requesterID,
			Detail:  reason,
		}},
	}
	fr.recordChange("created", "", fr.Status.String(), requesterID)
	return fr, nil
}

// EffectiveAmount is the corrected amount when one was set, else the requested amount
func (fr *FundingRequest) EffectiveAmount() decimal.Decimal {
	if fr.CorrectedAmount != nil {
		return *fr.CorrectedAmount
	}
	return fr.Amount
}

// Transition moves the request to target. Approving an already approved and
// applied request is a no-op so retries never apply the balance twice.
func (fr *FundingRequest) Transition(target Stage, actor shared.Actor, in TransitionInput) (TransitionOutcome, error) {
	if target == StageApproved && fr.Stage == StageApproved && fr.Changed {
		return TransitionOutcome{NoOp: true}, nil
	}
	if err := actor.RequireAdmin("move funding requests to " + target.String()); err != nil {
		return TransitionOutcome{}, err
	}
	if in.CorrectedAmount != nil && target != StageCorrected {
		return TransitionOutcome{}, shared.NewDomainError("INVALID_INPUT", "a corrected amount is only accepted on the corrected stage")
	}

	// approved without the applied marker: finish the balance application
	resume := target == StageApproved && fr.Stage == StageApproved && !fr.Changed
	if !resume && !fr.Stage.CanTransitionTo(target) {
		return TransitionOutcome{}, shared.NewDomainError("INVALID_STATE_TRANSITION",
			fmt.Sprintf("funding request %s cannot move from %s to %s", fr.Number, fr.Stage, target))
	}

	var outcome TransitionOutcome
	switch target {
	case StageCorrected:
		if in.CorrectedAmount != nil {
			if !in.CorrectedAmount.IsPositive() {
				return TransitionOutcome{}, shared.ErrInvalidAmount
			}
			if err := shared.CheckAmountScale(*in.CorrectedAmount, fr.Currency); err != nil {
				return TransitionOutcome{}, err
			}
			amount := *in.CorrectedAmount
			fr.CorrectedAmount = &amount
		}
	case StageApproved:
		disbursement, err := newDisbursement(actor.ID, in)
		if err != nil {
			return TransitionOutcome{}, err
		}
		movement, err := fr.movement(actor.ID, disbursement.Method)
		if err != nil {
			return TransitionOutcome{}, err
		}
		fr.Disbursement = disbursement
		fr.Changed = true
		outcome.Movement = movement
	}

	previous := fr.Status
	fr.Stage = target
	fr.Status = target.Status()
	fr.History = append(fr.History, HistoryEntry{
		Stage:   target,
		At:      time.Now(),
		ActorID: actor.ID,
		Detail:  strings.TrimSpace(in.Detail),
	})
	fr.touch()
	fr.recordChange(target.String(), previous.String(), fr.Status.String(), actor.ID)
	return outcome, nil
}

// movement builds the balance change applied on approval
func (fr *FundingRequest) movement(operatorID uuid.UUID, method string) (*Movement, error) {
	delta := fr.EffectiveAmount()
	txType := TransactionTypeFundingIn
	if fr.Direction == DirectionPayout {
		delta = delta.Neg()
		txType = TransactionTypeFundingOut
	}
	m, err := NewMovement(fr.Currency, delta, txType, SourceTypeFundingRequest, operatorID)
	if err != nil {
		return nil, err
	}
	return m.WithSource(fr.ID, fr.Number).WithPaymentMethod(method).WithRemark(fr.Reason), nil
}

func newDisbursement(approverID uuid.UUID, in TransitionInput) (*Disbursement, error) {
	if in.Cheque != nil && in.Transfer != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "a disbursement is either a cheque or a transfer")
	}
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if in.Cheque != nil {
		if in.Cheque.Number == "" || in.Cheque.Bank == "" {
			return nil, shared.NewDomainError("INVALID_INPUT", "cheque number and bank are required")
		}
		if method == "" {
			method = "cheque"
		}
	}
	if in.Transfer != nil {
		if in.Transfer.Reference == "" || in.Transfer.Bank == "" {
			return nil, shared.NewDomainError("INVALID_INPUT", "transfer reference and bank are required")
		}
		if method == "" {
			method = "transfer"
		}
	}
	if method == "" {
		method = "cash"
	}
	return &Disbursement{
		Method:     method,
		ApproverID: approverID,
		Cheque:     in.Cheque,
		Transfer:   in.Transfer,
	}, nil
}

func (fr *FundingRequest) touch() {
	fr.UpdatedAt = time.Now()
	fr.IncrementVersion()
}

func (fr *FundingRequest) recordChange(action, previous, next string, actorID uuid.UUID) {
	fr.AddDomainEvent(shared.NewEntityStateChangedEvent(AggregateTypeFundingRequest, fr.ID, fr.Number, action, previous, next, actorID))
}

func scanJSON(value any, dest any, name string) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan " + name + ": unsupported type")
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}
