// internal/domain/allowlist/index_test.go
package allowlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_DefaultLabelConverges(t *testing.T) {
	// リスト定義は空ラベルを表現できないため "default" で保存される。
	// 引く側はグループの正規化ラベル ""（基底グループ）で引く。
	list, err := New("default", "v1", []string{"Member1", "Member2", "Member3"})
	require.NoError(t, err)
	idx := NewIndex([]AllowList{list})

	assert.True(t, idx.HasLabel(""))
	assert.True(t, idx.HasLabel("default"))
	assert.True(t, idx.HasLabel("Default"))

	root, ok := idx.Root("")
	require.True(t, ok)

	proof := idx.Proof("", "Member1")
	require.NotEmpty(t, proof)
	assert.True(t, VerifyProof(root, "Member1", proof))
	assert.Equal(t, proof, idx.Proof("default", "Member1"))

	assert.True(t, idx.Verifier("Member1")(root, ""))
	assert.False(t, idx.Verifier("Outsider")(root, ""))
}

func TestIndex_ReplaceNormalizesLabel(t *testing.T) {
	v1, err := New("default", "v1", []string{"Member1", "Member2"})
	require.NoError(t, err)
	idx := NewIndex([]AllowList{v1})
	rootV1, ok := idx.Root("")
	require.True(t, ok)

	// 表記違いのラベルでの差し替えも同じエントリに落ちる
	v2, err := New("Default", "v2", []string{"Member1", "Member2", "Member3"})
	require.NoError(t, err)
	idx.Replace(v2)

	ver, ok := idx.Version("")
	require.True(t, ok)
	assert.Equal(t, "v2", ver)

	rootV2, ok := idx.Root("default")
	require.True(t, ok)
	assert.NotEqual(t, rootV1, rootV2)
	assert.True(t, VerifyProof(rootV2, "Member3", idx.Proof("", "Member3")))
}
