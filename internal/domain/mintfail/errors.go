// internal/domain/mintfail/errors.go
package mintfail

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ------------------------------------------------------
// エラー分類: プログラム失敗コード → ユーザ向け理由
// ------------------------------------------------------
//
// 低レベルの送信失敗（不透明なコード、タイムアウト、メッセージ）を
// 小さなユーザ向け分類に写す。I/O は行わず、元因は必ず保持する。

// Reason is the user-facing failure category.
type Reason string

const (
	ReasonUnknownGroup         Reason = "unknownGroup"
	ReasonCandyMachineNotFound Reason = "candyMachineNotLoaded"
	ReasonNotInAllowList       Reason = "notInAllowList"
	ReasonTimeout              Reason = "timeout"
	ReasonSoldOut              Reason = "soldOut"
	ReasonInsufficientFunds    Reason = "insufficientFunds"
	ReasonNotStarted           Reason = "mintingPeriodNotStarted"
	ReasonMintFailed           Reason = "mintFailed"
	ReasonInProgress           Reason = "mintInProgress"
	ReasonCoSignerMissing      Reason = "coSignerNotConfigured"
)

// Message returns the user-facing text for a reason.
func (r Reason) Message() string {
	switch r {
	case ReasonUnknownGroup:
		return "Unknown mint group."
	case ReasonCandyMachineNotFound:
		return "Candy machine is not loaded."
	case ReasonNotInAllowList:
		return "Wallet is not in the allow list for this group."
	case ReasonTimeout:
		return "Mint timed out. Please try again."
	case ReasonSoldOut:
		return "Sold out!"
	case ReasonInsufficientFunds:
		return "Insufficient funds to mint."
	case ReasonNotStarted:
		return "Minting period hasn't started yet."
	case ReasonInProgress:
		return "A mint is already in progress."
	case ReasonCoSignerMissing:
		return "Required co-signer is not configured."
	default:
		return "Minting failed. Please try again."
	}
}

// ------------------------------------------------------
// Validation sentinels（送信前に確定する失敗）
// ------------------------------------------------------

var (
	ErrUnknownGroup         = &Error{Reason: ReasonUnknownGroup}
	ErrCandyMachineNotFound = &Error{Reason: ReasonCandyMachineNotFound}
	ErrNotInAllowList       = &Error{Reason: ReasonNotInAllowList}
	ErrMintInProgress       = &Error{Reason: ReasonInProgress}
	ErrCoSignerMissing      = &Error{Reason: ReasonCoSignerMissing}
)

// Error carries a classified reason plus the raw cause for logging.
type Error struct {
	Reason Reason
	cause  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("mintfail: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("mintfail: %s", e.Reason)
}

// Unwrap exposes the raw cause; never suppressed.
func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match on the reason, so the sentinels above work
// against classified instances carrying a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e != nil && e.Reason == t.Reason
}

// Wrap attaches a cause to a reason.
func Wrap(r Reason, cause error) *Error {
	return &Error{Reason: r, cause: cause}
}

// ------------------------------------------------------
// ProgramError: 構造化されたプログラムエラー
// ------------------------------------------------------

// Program error codes surfaced by the mint program.
const (
	ProgramCodeSoldOut    = 311
	ProgramCodeNotStarted = 312
)

// ProgramError is a structured failure decoded from a submission
// response, with the on-chain error code when one was present.
type ProgramError struct {
	Code int
	Msg  string
}

func (e *ProgramError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("program error code=%d", e.Code)
	}
	return fmt.Sprintf("program error code=%d: %s", e.Code, e.Msg)
}

// ------------------------------------------------------
// Classify
// ------------------------------------------------------

// Known program log signatures embedded in failure messages.
const (
	sigSoldOut           = "0x137"
	sigInsufficientFunds = "0x135"
)

// Classify maps a raised submission failure onto the taxonomy using
// ordered precedence. Already-classified errors pass through.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return already
	}

	// 1. no underlying message at all -> timeout
	msg := strings.TrimSpace(err.Error())
	if msg == "" || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ReasonTimeout, err)
	}

	// 2./3. known program log signatures
	lower := strings.ToLower(msg)
	if strings.Contains(msg, sigSoldOut) || strings.Contains(lower, "sold out") {
		return Wrap(ReasonSoldOut, err)
	}
	if strings.Contains(msg, sigInsufficientFunds) || strings.Contains(lower, "insufficient") {
		return Wrap(ReasonInsufficientFunds, err)
	}

	// 4. structured program error codes
	var pe *ProgramError
	if errors.As(err, &pe) {
		switch pe.Code {
		case ProgramCodeSoldOut:
			return Wrap(ReasonSoldOut, err)
		case ProgramCodeNotStarted:
			return Wrap(ReasonNotStarted, err)
		}
	}

	// 5. generic failure, original message preserved via cause
	return Wrap(ReasonMintFailed, err)
}
