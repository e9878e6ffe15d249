// internal/domain/mintfail/errors_test.go
package mintfail

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyErr は Error() が空文字を返すエラー（署名だけ失敗したケースの再現）。
type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{
			name: "empty message means timeout",
			err:  emptyErr{},
			want: ReasonTimeout,
		},
		{
			name: "deadline exceeded means timeout",
			err:  fmt.Errorf("send: %w", context.DeadlineExceeded),
			want: ReasonTimeout,
		},
		{
			name: "0x137 signature",
			err:  errors.New("transaction simulation failed: custom program error: 0x137"),
			want: ReasonSoldOut,
		},
		{
			name: "sold out text",
			err:  errors.New("candy machine Sold Out"),
			want: ReasonSoldOut,
		},
		{
			name: "0x135 signature",
			err:  errors.New("custom program error: 0x135"),
			want: ReasonInsufficientFunds,
		},
		{
			name: "insufficient text",
			err:  errors.New("Insufficient lamports for fee"),
			want: ReasonInsufficientFunds,
		},
		{
			name: "program code 311",
			err:  &ProgramError{Code: ProgramCodeSoldOut, Msg: "redeemed all items"},
			want: ReasonSoldOut,
		},
		{
			name: "program code 312",
			err:  &ProgramError{Code: ProgramCodeNotStarted, Msg: "not live yet"},
			want: ReasonNotStarted,
		},
		{
			name: "unknown program code falls through",
			err:  &ProgramError{Code: 999, Msg: "who knows"},
			want: ReasonMintFailed,
		},
		{
			name: "generic failure",
			err:  errors.New("blockhash not found"),
			want: ReasonMintFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Reason)
		})
	}
}

func TestClassify_NilIsNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassify_PreservesCause(t *testing.T) {
	cause := errors.New("raw rpc detail")
	got := Classify(fmt.Errorf("submit: %w", cause))

	require.NotNil(t, got)
	assert.ErrorIs(t, got, cause)
}

func TestClassify_PassThroughAlreadyClassified(t *testing.T) {
	orig := Wrap(ReasonNotInAllowList, errors.New("proof empty"))

	got := Classify(fmt.Errorf("mint: %w", orig))

	assert.Same(t, orig, got)
}

func TestClassify_SignatureBeatsProgramCode(t *testing.T) {
	// メッセージ署名の方が構造化コードより優先される
	err := &ProgramError{Code: ProgramCodeNotStarted, Msg: "custom program error: 0x137"}

	got := Classify(err)
	require.NotNil(t, got)
	assert.Equal(t, ReasonSoldOut, got.Reason)
}

func TestError_SentinelMatching(t *testing.T) {
	wrapped := Wrap(ReasonNotInAllowList, errors.New("verify failed"))

	assert.ErrorIs(t, wrapped, ErrNotInAllowList)
	assert.NotErrorIs(t, wrapped, ErrMintInProgress)
}

func TestReason_Message(t *testing.T) {
	assert.Equal(t, "Sold out!", ReasonSoldOut.Message())
	assert.Equal(t, "Minting failed. Please try again.", ReasonMintFailed.Message())
	assert.Equal(t, "Minting failed. Please try again.", Reason("???").Message())
}
