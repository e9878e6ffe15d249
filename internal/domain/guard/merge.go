// internal/domain/guard/merge.go
package guard

// ------------------------------------------------------
// Merge: default guards × group overrides
// ------------------------------------------------------
//
// グループの実効ガードは merge(default, group.Guards) で一意に決まる。
// override はガード単位の丸ごと置換であり、フィールド単位のマージはしない。

// Merge combines a base set with a group override set.
// For each kind the result is the override's guard when configured,
// otherwise the base's guard. Kinds absent from both stay absent.
func Merge(base, override Set) Set {
	out := base
	if override.AllowList != nil {
		out.AllowList = override.AllowList
	}
	if override.MintLimit != nil {
		out.MintLimit = override.MintLimit
	}
	if override.NFTPayment != nil {
		out.NFTPayment = override.NFTPayment
	}
	if override.NFTBurn != nil {
		out.NFTBurn = override.NFTBurn
	}
	if override.NFTGate != nil {
		out.NFTGate = override.NFTGate
	}
	if override.TokenPayment != nil {
		out.TokenPayment = override.TokenPayment
	}
	if override.SolPayment != nil {
		out.SolPayment = override.SolPayment
	}
	if override.StartDate != nil {
		out.StartDate = override.StartDate
	}
	if override.EndDate != nil {
		out.EndDate = override.EndDate
	}
	if override.RedeemedAmount != nil {
		out.RedeemedAmount = override.RedeemedAmount
	}
	if override.ThirdPartySigner != nil {
		out.ThirdPartySigner = override.ThirdPartySigner
	}
	return out
}
