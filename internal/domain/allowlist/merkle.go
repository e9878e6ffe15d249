// internal/domain/allowlist/merkle.go
package allowlist

import (
	"bytes"
	"crypto/sha256"
	"strings"
)

// ------------------------------------------------------
// Merkle tree over an address set
// ------------------------------------------------------
//
// leaf  = SHA-256(trimmed address)
// node  = SHA-256(min(l,r) || max(l,r))
//
// 子ノードをソートしてからハッシュするので、証明に左右の方向ビットが
// 不要になり、検証は sibling 列だけで完結する。奇数段の端ノードは
// そのまま持ち上げる。

// Hash is one tree node digest.
type Hash = [32]byte

// Tree is an immutable membership structure over an address set.
type Tree struct {
	// levels[0] is the leaf row; the last level has exactly one node.
	levels [][]Hash
	// leafIndex maps a leaf digest to its position in levels[0].
	leafIndex map[Hash]int
}

// LeafHash hashes one normalized address string.
func LeafHash(address string) Hash {
	return sha256.Sum256([]byte(strings.TrimSpace(address)))
}

func nodeHash(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	h := sha256.New()
	h.Write(a[:])
	h.Write(b[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// BuildTree constructs the tree for an address sequence. Depth is
// determined by the address count. Deterministic for equal input.
func BuildTree(addresses []string) *Tree {
	leaves := make([]Hash, 0, len(addresses))
	index := make(map[Hash]int, len(addresses))
	for _, a := range addresses {
		h := LeafHash(a)
		if _, dup := index[h]; dup {
			continue
		}
		index[h] = len(leaves)
		leaves = append(leaves, h)
	}

	t := &Tree{leafIndex: index}
	if len(leaves) == 0 {
		return t
	}

	t.levels = append(t.levels, leaves)
	for level := t.levels[0]; len(level) > 1; {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// 端ノードはそのまま持ち上げる
				next = append(next, level[i])
				continue
			}
			next = append(next, nodeHash(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Root returns the tree root. Zero hash for an empty tree.
func (t *Tree) Root() Hash {
	if t == nil || len(t.levels) == 0 {
		return Hash{}
	}
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Len returns the leaf count.
func (t *Tree) Len() int {
	if t == nil || len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Proof returns the ordered sibling hashes for an address, leaf to
// root. Empty slice when the address is not a member.
func (t *Tree) Proof(address string) []Hash {
	if t == nil || len(t.levels) == 0 {
		return nil
	}
	idx, ok := t.leafIndex[LeafHash(address)]
	if !ok {
		return nil
	}

	proof := make([]Hash, 0, len(t.levels))
	for _, level := range t.levels[:len(t.levels)-1] {
		sib := idx ^ 1
		if sib < len(level) {
			proof = append(proof, level[sib])
		}
		idx /= 2
	}
	return proof
}

// VerifyProof recomputes the root from a leaf address and its proof.
func VerifyProof(root Hash, address string, proof []Hash) bool {
	h := LeafHash(address)
	for _, sib := range proof {
		h = nodeHash(h, sib)
	}
	return h == root
}
