// internal/domain/allowlist/index.go
package allowlist

import (
	"strings"
	"sync"

	"mintgate/internal/domain/guard"
)

// ------------------------------------------------------
// Index: ツリー／証明キャッシュ
// ------------------------------------------------------
//
// (label, callerAddress, version) ごとにちょうど 1 組のツリー＋証明を
// 保持する。リスト定義の差し替え（version 変化）または caller の変化で
// 該当エントリは作り直す。ツリー構築は遅延。

// Labels are stored normalized (guard.NormalizeLabel), so the
// "default" list and the unlabeled base group converge on one entry.
type Index struct {
	mu    sync.Mutex
	lists map[string]AllowList // normalized label -> definition
	trees map[string]*Tree     // normalized label -> built tree
	// proofs is keyed by label+caller+version.
	proofs map[proofKey][]Hash
}

type proofKey struct {
	label   string
	caller  string
	version string
}

// NewIndex builds an index over the given allow-list definitions.
func NewIndex(lists []AllowList) *Index {
	idx := &Index{
		lists:  make(map[string]AllowList, len(lists)),
		trees:  make(map[string]*Tree, len(lists)),
		proofs: make(map[proofKey][]Hash),
	}
	for _, l := range lists {
		idx.lists[guard.NormalizeLabel(l.Label)] = l
	}
	return idx
}

// Replace swaps in a new definition for a label and drops every cache
// entry derived from the previous version.
func (x *Index) Replace(list AllowList) {
	if x == nil {
		return
	}
	label := guard.NormalizeLabel(list.Label)
	x.mu.Lock()
	defer x.mu.Unlock()
	x.lists[label] = list
	delete(x.trees, label)
	for k := range x.proofs {
		if k.label == label {
			delete(x.proofs, k)
		}
	}
}

// Configured reports whether any allow-list exists at all.
func (x *Index) Configured() bool {
	if x == nil {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.lists) > 0
}

// HasLabel reports whether a list is configured for the label.
func (x *Index) HasLabel(label string) bool {
	if x == nil {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.lists[guard.NormalizeLabel(label)]
	return ok
}

// Version returns the configured list version for a label.
func (x *Index) Version(label string) (string, bool) {
	if x == nil {
		return "", false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	l, ok := x.lists[guard.NormalizeLabel(label)]
	if !ok {
		return "", false
	}
	return l.Version, true
}

// Root returns the merkle root for a label's list.
func (x *Index) Root(label string) (Hash, bool) {
	if x == nil {
		return Hash{}, false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	t, ok := x.treeLocked(guard.NormalizeLabel(label))
	if !ok {
		return Hash{}, false
	}
	return t.Root(), true
}

// Proof returns the cached membership proof for (label, caller).
// Empty proof = caller is not in the list (or no list for the label).
func (x *Index) Proof(label, caller string) []Hash {
	if x == nil {
		return nil
	}
	label = guard.NormalizeLabel(label)
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	list, ok := x.lists[label]
	if !ok {
		return nil
	}
	key := proofKey{label: label, caller: caller, version: list.Version}
	if p, hit := x.proofs[key]; hit {
		return p
	}

	t, ok := x.treeLocked(label)
	if !ok {
		return nil
	}
	p := t.Proof(caller)
	x.proofs[key] = p
	return p
}

// Verifier returns the proof verifier closure for one caller address,
// as consumed by the guard evaluator.
//
//   - allow-list が 1 つも無い場合: 常に true（オープンミント）
//   - allow-list があるのに caller が空: 常に false
func (x *Index) Verifier(caller string) func(root Hash, label string) bool {
	caller = strings.TrimSpace(caller)
	return func(root Hash, label string) bool {
		if x == nil || !x.Configured() {
			return true
		}
		if caller == "" {
			return false
		}
		proof := x.Proof(label, caller)
		if len(proof) == 0 {
			// 単葉ツリーだけは空証明が正になる
			if t, ok := x.tree(label); ok && t.Len() == 1 {
				return VerifyProof(root, caller, nil)
			}
			return false
		}
		return VerifyProof(root, caller, proof)
	}
}

func (x *Index) tree(label string) (*Tree, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.treeLocked(guard.NormalizeLabel(label))
}

// treeLocked builds (lazily) and caches the tree for a normalized
// label. Caller must hold x.mu.
func (x *Index) treeLocked(label string) (*Tree, bool) {
	if t, ok := x.trees[label]; ok {
		return t, true
	}
	list, ok := x.lists[label]
	if !ok {
		return nil, false
	}
	t := BuildTree(list.Addresses)
	x.trees[label] = t
	return t, true
}
