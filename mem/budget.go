package mem

import (
	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/overflow"
	"github.com/vantorre/memkit/mem/alloc"
)

// ZoneSpec declares one zone's share of a budget. Weight is the fraction of
// TotalBytes the zone would like; MinBytes and MaxBytes bound what it actually
// receives, and the bounds always win over the weight. CanGrow marks zones
// that may borrow from neighbors once rebalancing exists; today it is
// informational only.
type ZoneSpec struct {
	Zone     ZoneKind
	Weight   float64
	MinBytes int
	MaxBytes int
	CanGrow  bool
}

// Budget describes how one total reservation is divided among zones. Budgets
// are plain values: copy them, mutate copies, pass them to Initialize.
// Weights need not sum to 1.0 — the bounds make over- and under-subscription
// well defined.
type Budget struct {
	TotalBytes int
	Zones      []ZoneSpec
}

// ZoneSize returns the realized byte size for kind: TotalBytes×Weight clamped
// into [MinBytes, MaxBytes], with the minimum applied before the maximum.
// A kind the budget does not declare gets 0.
func (b Budget) ZoneSize(kind ZoneKind) int {
	spec, ok := b.Spec(kind)
	if !ok {
		return 0
	}
	size := int(float64(b.TotalBytes) * spec.Weight)
	if size < spec.MinBytes {
		size = spec.MinBytes
	}
	if size > spec.MaxBytes {
		size = spec.MaxBytes
	}
	return size
}

// Spec returns the declaration for kind and whether the budget contains one.
func (b Budget) Spec(kind ZoneKind) (ZoneSpec, bool) {
	for _, spec := range b.Zones {
		if spec.Zone == kind {
			return spec, true
		}
	}
	return ZoneSpec{}, false
}

// RequiredBytes is the sum of realized zone sizes. Because minimum guarantees
// can outweigh their share of TotalBytes, this may exceed TotalBytes; the
// Manager reserves whichever is larger.
func (b Budget) RequiredBytes() int {
	total := 0
	for _, spec := range b.Zones {
		total += b.ZoneSize(spec.Zone)
	}
	return total
}

// Validate checks the budget is well formed: a positive total, at least one
// zone, no duplicate or unknown zones, weights in [0, 1], ordered non-negative
// bounds, and realized zone sizes whose sum fits in an int.
func (b Budget) Validate() error {
	if b.TotalBytes <= 0 {
		return errors.Wrapf(ErrInvalidBudget, "total bytes must be positive, got %d", b.TotalBytes)
	}
	if len(b.Zones) == 0 {
		return errors.Wrap(ErrInvalidBudget, "no zones declared")
	}
	var seen [zoneKindCount]bool
	required := 0
	for _, spec := range b.Zones {
		if !spec.Zone.Valid() {
			return errors.Wrapf(ErrInvalidBudget, "zone %d is not a defined zone", spec.Zone)
		}
		if seen[spec.Zone] {
			return errors.Wrapf(ErrInvalidBudget, "zone %s declared twice", spec.Zone)
		}
		seen[spec.Zone] = true
		if spec.Weight < 0 || spec.Weight > 1 {
			return errors.Wrapf(ErrInvalidBudget, "zone %s weight %.3f outside [0, 1]", spec.Zone, spec.Weight)
		}
		if spec.MinBytes < 0 {
			return errors.Wrapf(ErrInvalidBudget, "zone %s negative min %d", spec.Zone, spec.MinBytes)
		}
		if spec.MaxBytes < spec.MinBytes {
			return errors.Wrapf(ErrInvalidBudget, "zone %s max %d below min %d", spec.Zone, spec.MaxBytes, spec.MinBytes)
		}
		sum, ok := overflow.Add(required, b.ZoneSize(spec.Zone))
		if !ok {
			return errors.Wrapf(ErrInvalidBudget, "zone sizes through %s overflow int", spec.Zone)
		}
		required = sum
	}
	return nil
}

// DesktopBudget is the shipping-game default: 1 GiB split with rendering and
// assets dominating. Assets cannot grow so streaming pressure is surfaced
// instead of silently eating neighbor zones.
func DesktopBudget() Budget {
	return Budget{
		TotalBytes: 1 * alloc.GiB,
		Zones: []ZoneSpec{
			{Zone: ZoneFrameTemp, Weight: 0.05, MinBytes: 4 * alloc.MiB, MaxBytes: 32 * alloc.MiB, CanGrow: true},
			{Zone: ZoneThreadLocal, Weight: 0.03, MinBytes: 2 * alloc.MiB, MaxBytes: 16 * alloc.MiB, CanGrow: true},
			{Zone: ZoneEntities, Weight: 0.20, MinBytes: 32 * alloc.MiB, MaxBytes: 256 * alloc.MiB, CanGrow: true},
			{Zone: ZonePhysics, Weight: 0.10, MinBytes: 16 * alloc.MiB, MaxBytes: 128 * alloc.MiB, CanGrow: true},
			{Zone: ZoneRendering, Weight: 0.25, MinBytes: 64 * alloc.MiB, MaxBytes: 384 * alloc.MiB, CanGrow: true},
			{Zone: ZoneAssets, Weight: 0.30, MinBytes: 128 * alloc.MiB, MaxBytes: 512 * alloc.MiB, CanGrow: false},
			{Zone: ZoneAudio, Weight: 0.05, MinBytes: 8 * alloc.MiB, MaxBytes: 64 * alloc.MiB, CanGrow: true},
			{Zone: ZoneGeneral, Weight: 0.10, MinBytes: 16 * alloc.MiB, MaxBytes: 128 * alloc.MiB, CanGrow: true},
			{Zone: ZoneDebug, Weight: 0.02, MinBytes: 2 * alloc.MiB, MaxBytes: 16 * alloc.MiB, CanGrow: true},
		},
	}
}

// AuthoringBudget suits editor and tool builds: 2 GiB with a much larger
// asset share for unbaked content.
func AuthoringBudget() Budget {
	return Budget{
		TotalBytes: 2 * alloc.GiB,
		Zones: []ZoneSpec{
			{Zone: ZoneFrameTemp, Weight: 0.03, MinBytes: 8 * alloc.MiB, MaxBytes: 64 * alloc.MiB, CanGrow: true},
			{Zone: ZoneThreadLocal, Weight: 0.02, MinBytes: 4 * alloc.MiB, MaxBytes: 32 * alloc.MiB, CanGrow: true},
			{Zone: ZoneEntities, Weight: 0.15, MinBytes: 64 * alloc.MiB, MaxBytes: 384 * alloc.MiB, CanGrow: true},
			{Zone: ZonePhysics, Weight: 0.05, MinBytes: 16 * alloc.MiB, MaxBytes: 128 * alloc.MiB, CanGrow: true},
			{Zone: ZoneRendering, Weight: 0.20, MinBytes: 128 * alloc.MiB, MaxBytes: 512 * alloc.MiB, CanGrow: true},
			{Zone: ZoneAssets, Weight: 0.40, MinBytes: 256 * alloc.MiB, MaxBytes: 1 * alloc.GiB, CanGrow: false},
			{Zone: ZoneAudio, Weight: 0.03, MinBytes: 8 * alloc.MiB, MaxBytes: 64 * alloc.MiB, CanGrow: true},
			{Zone: ZoneGeneral, Weight: 0.10, MinBytes: 32 * alloc.MiB, MaxBytes: 256 * alloc.MiB, CanGrow: true},
			{Zone: ZoneDebug, Weight: 0.02, MinBytes: 4 * alloc.MiB, MaxBytes: 32 * alloc.MiB, CanGrow: true},
		},
	}
}

// ConstrainedBudget targets memory-tight platforms: 512 MiB total and no
// debug zone at all.
func ConstrainedBudget() Budget {
	return Budget{
		TotalBytes: 512 * alloc.MiB,
		Zones: []ZoneSpec{
			{Zone: ZoneFrameTemp, Weight: 0.05, MinBytes: 2 * alloc.MiB, MaxBytes: 8 * alloc.MiB, CanGrow: true},
			{Zone: ZoneThreadLocal, Weight: 0.02, MinBytes: 1 * alloc.MiB, MaxBytes: 4 * alloc.MiB, CanGrow: true},
			{Zone: ZoneEntities, Weight: 0.20, MinBytes: 16 * alloc.MiB, MaxBytes: 64 * alloc.MiB, CanGrow: true},
			{Zone: ZonePhysics, Weight: 0.10, MinBytes: 8 * alloc.MiB, MaxBytes: 32 * alloc.MiB, CanGrow: true},
			{Zone: ZoneRendering, Weight: 0.25, MinBytes: 32 * alloc.MiB, MaxBytes: 128 * alloc.MiB, CanGrow: true},
			{Zone: ZoneAssets, Weight: 0.30, MinBytes: 64 * alloc.MiB, MaxBytes: 192 * alloc.MiB, CanGrow: false},
			{Zone: ZoneAudio, Weight: 0.05, MinBytes: 4 * alloc.MiB, MaxBytes: 16 * alloc.MiB, CanGrow: true},
			{Zone: ZoneGeneral, Weight: 0.08, MinBytes: 8 * alloc.MiB, MaxBytes: 32 * alloc.MiB, CanGrow: true},
			{Zone: ZoneDebug, Weight: 0, MinBytes: 0, MaxBytes: 0, CanGrow: false},
		},
	}
}
