// internal/infra/solana/ledger_client_test.go
package solana

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintgate/internal/domain/mintfail"
)

func TestAsProgramError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantCode int
		lifted   bool
	}{
		{
			name:     "hex code 0x137",
			msg:      "transaction failed: custom program error: 0x137",
			wantCode: 0x137,
			lifted:   true,
		},
		{
			name:     "code followed by trailing text",
			msg:      "custom program error: 0x135; logs truncated",
			wantCode: 0x135,
			lifted:   true,
		},
		{
			name:   "no marker passes through",
			msg:    "blockhash not found",
			lifted: false,
		},
		{
			name:   "unparseable hex passes through",
			msg:    "custom program error: 0xZZ",
			lifted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := errors.New(tt.msg)
			out := asProgramError(in)

			var pe *mintfail.ProgramError
			if !tt.lifted {
				assert.False(t, errors.As(out, &pe))
				assert.Equal(t, in, out)
				return
			}
			require.ErrorAs(t, out, &pe)
			assert.Equal(t, tt.wantCode, pe.Code)
			assert.Contains(t, pe.Msg, tt.msg)
		})
	}
}

func TestAsProgramError_Nil(t *testing.T) {
	assert.Nil(t, asProgramError(nil))
}

func TestMaskShort(t *testing.T) {
	assert.Equal(t, "", maskShort("  "))
	assert.Equal(t, "short", maskShort("short"))
	assert.Equal(t, "Camp***1111", maskShort("CampaignAddr11111111111111111111"))
}

func TestRouteInstructionData(t *testing.T) {
	data := routeInstructionData("vip", [][32]byte{{0x01}, {0x02}})

	// discriminator + label長(4) + "vip" + proof数(4) + 32*2
	require.Len(t, data, 1+4+3+4+64)
	assert.Equal(t, routeAllowListIx, data[0])
	assert.Equal(t, byte(3), data[1]) // little-endian label length
	assert.Equal(t, []byte("vip"), data[5:8])
	assert.Equal(t, byte(2), data[8]) // proof count
	assert.Equal(t, byte(0x01), data[12])
	assert.Equal(t, byte(0x02), data[44])
}
