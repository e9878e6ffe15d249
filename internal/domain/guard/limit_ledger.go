// internal/domain/guard/limit_ledger.go
package guard

import "sync"

// ------------------------------------------------------
// LimitLedger: mintLimit のローカルカウンタ
// ------------------------------------------------------
//
// カウンタはあくまで advisory なローカル状態。書き込みはミント完了時の
// cleanup パスに限定し、評価側の読み取りと合わせて単一ロックで直列化する。

// LimitLedger tracks how many mints the local caller has performed
// under each mintLimit guard id.
type LimitLedger struct {
	mu     sync.Mutex
	counts map[uint8]uint64
}

// NewLimitLedger returns an empty ledger.
func NewLimitLedger() *LimitLedger {
	return &LimitLedger{counts: make(map[uint8]uint64)}
}

// Count returns the current local count for a limit id.
func (l *LimitLedger) Count(id uint8) uint64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[id]
}

// Add increments the counter for a limit id by n.
func (l *LimitLedger) Add(id uint8, n uint64) {
	if l == nil || n == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[uint8]uint64)
	}
	l.counts[id] += n
}

// Snapshot copies the current counters.
func (l *LimitLedger) Snapshot() map[uint8]uint64 {
	if l == nil {
		return map[uint8]uint64{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uint8]uint64, len(l.counts))
	for id, n := range l.counts {
		out[id] = n
	}
	return out
}
