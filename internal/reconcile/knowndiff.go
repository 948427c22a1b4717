package reconcile

import (
	"strings"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

type knownDiffs map[string][]domain.KnownDiffRule

func indexKnownDiffs(rules []domain.KnownDiffRule) knownDiffs {
	if len(rules) == 0 {
		return nil
	}
	kd := make(knownDiffs, len(rules))
	for _, r := range rules {
		key := strings.ToLower(r.Column)
		kd[key] = append(kd[key], r)
	}
	return kd
}

// match reports whether an unequal source/target pair on targetColumn is a known diff.
func (kd knownDiffs) match(targetColumn string, src, tgt any) bool {
	rules := kd[strings.ToLower(targetColumn)]
	if len(rules) == 0 {
		return false
	}
	cs, ns := Canonical(src)
	ct, nt := Canonical(tgt)
	for _, r := range rules {
		if r.NullEqualsEmpty && ((ns && !nt && ct == "") || (nt && !ns && cs == "")) {
			return true
		}
		if ns || nt {
			continue
		}
		for _, p := range r.Pairs {
			if p.Source == cs && p.Target == ct {
				return true
			}
		}
	}
	return false
}
