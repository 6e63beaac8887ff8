/**
 * Attribute reconciler
 *
 * Folds the candidates from all sources into the final attribute set.
 * Single-valued kinds keep the highest-confidence candidate, with source
 * priority (title, description, transcript) breaking ties. Multi-valued
 * kinds keep the union of values above the acceptance floor, deduplicated
 * on normalized value with the best candidate representing each value.
 */

package attributes

import (
	"sort"
	"strings"
)

var kindOrder = []string{
	KindPrice, KindDimensions, KindWeight, KindBrand, KindCategory,
	KindResolution, KindStorage, KindColor, KindMaterial, KindFeature,
	KindKeyword,
}

// Reconciler merges attribute candidates into the published set.
type Reconciler struct {
	floor float64
}

// NewReconciler builds a reconciler with the given acceptance floor for
// multi-valued kinds.
func NewReconciler(floor float64) *Reconciler {
	if floor < 0 {
		floor = 0
	}
	if floor > 1 {
		floor = 1
	}
	return &Reconciler{floor: floor}
}

// Reconcile produces the final attribute set in a deterministic order:
// single-valued kinds first, then multi-valued sets sorted by confidence
// and value.
func (r *Reconciler) Reconcile(candidates []Attribute) []Attribute {
	byKind := make(map[string][]Attribute)
	for _, candidate := range candidates {
		candidate.Confidence = clamp01(candidate.Confidence)
		if strings.TrimSpace(candidate.Value) == "" {
			continue
		}
		byKind[candidate.Kind] = append(byKind[candidate.Kind], candidate)
	}

	final := make([]Attribute, 0, len(byKind))
	for _, kind := range kindOrder {
		group := byKind[kind]
		delete(byKind, kind)
		if len(group) == 0 {
			continue
		}
		if MultiValued(kind) {
			final = append(final, r.reconcileSet(group)...)
		} else if winner, ok := r.reconcileSingle(group); ok {
			final = append(final, winner)
		}
	}

	// Kinds outside the fixed order (custom extractors) go last, sorted
	// by kind name for determinism.
	extraKinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		extraKinds = append(extraKinds, kind)
	}
	sort.Strings(extraKinds)
	for _, kind := range extraKinds {
		if MultiValued(kind) {
			final = append(final, r.reconcileSet(byKind[kind])...)
		} else if winner, ok := r.reconcileSingle(byKind[kind]); ok {
			final = append(final, winner)
		}
	}

	return final
}

func (r *Reconciler) reconcileSingle(group []Attribute) (Attribute, bool) {
	best := group[0]
	for _, candidate := range group[1:] {
		if candidate.Confidence > best.Confidence ||
			(candidate.Confidence == best.Confidence &&
				SourcePriority(candidate.Source) < SourcePriority(best.Source)) {
			best = candidate
		}
	}
	return best, true
}

func (r *Reconciler) reconcileSet(group []Attribute) []Attribute {
	byValue := make(map[string]Attribute)
	order := make([]string, 0, len(group))

	for _, candidate := range group {
		if candidate.Confidence < r.floor {
			continue
		}
		key := normalizeValue(candidate.Value)
		current, seen := byValue[key]
		if !seen {
			byValue[key] = candidate
			order = append(order, key)
			continue
		}
		if candidate.Confidence > current.Confidence ||
			(candidate.Confidence == current.Confidence &&
				SourcePriority(candidate.Source) < SourcePriority(current.Source)) {
			byValue[key] = candidate
		}
	}

	values := make([]Attribute, 0, len(order))
	for _, key := range order {
		values = append(values, byValue[key])
	}
	sort.SliceStable(values, func(i, j int) bool {
		if values[i].Confidence != values[j].Confidence {
			return values[i].Confidence > values[j].Confidence
		}
		return values[i].Value < values[j].Value
	})
	return values
}

func normalizeValue(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
