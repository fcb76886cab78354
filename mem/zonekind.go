package mem

import "strings"

// ZoneKind identifies one of the fixed memory zones a budget partitions the
// reservation into. The set is closed: zones are compile-time vocabulary, not
// runtime configuration, so subsystems can hold ZoneKind constants without
// consulting the Manager.
type ZoneKind uint8

const (
	// ZoneFrameTemp holds data that lives for at most one frame; rewound
	// wholesale between frames.
	ZoneFrameTemp ZoneKind = iota
	// ZoneThreadLocal backs per-worker scratch allocators.
	ZoneThreadLocal
	// ZoneEntities holds entity and component storage.
	ZoneEntities
	// ZonePhysics holds collision geometry, contacts, and solver scratch.
	ZonePhysics
	// ZoneRendering holds command lists, transient GPU staging, and
	// renderer-side caches.
	ZoneRendering
	// ZoneAssets holds decoded asset payloads (textures, meshes, clips).
	ZoneAssets
	// ZoneAudio holds mixer voices and decoded audio buffers.
	ZoneAudio
	// ZoneGeneral is the catch-all for subsystems without a dedicated zone.
	ZoneGeneral
	// ZoneDebug holds tooling and instrumentation data, kept apart so it
	// never distorts gameplay zone statistics.
	ZoneDebug

	zoneKindCount
)

var zoneNames = [...]string{
	ZoneFrameTemp:   "frame-temp",
	ZoneThreadLocal: "thread-local",
	ZoneEntities:    "entities",
	ZonePhysics:     "physics",
	ZoneRendering:   "rendering",
	ZoneAssets:      "assets",
	ZoneAudio:       "audio",
	ZoneGeneral:     "general",
	ZoneDebug:       "debug",
}

func (z ZoneKind) String() string {
	if z.Valid() {
		return zoneNames[z]
	}
	return "unknown"
}

// Valid reports whether z names one of the defined zones.
func (z ZoneKind) Valid() bool {
	return z < zoneKindCount
}

// ParseZone resolves a zone name as it appears in budget files and CLI
// arguments. Matching is case-insensitive.
func ParseZone(s string) (ZoneKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for z, n := range zoneNames {
		if n == name {
			return ZoneKind(z), nil
		}
	}
	return zoneKindCount, errUnknownZoneName(s)
}

// Zones returns every defined zone in declaration order, which is also
// partition order.
func Zones() []ZoneKind {
	out := make([]ZoneKind, zoneKindCount)
	for i := range out {
		out[i] = ZoneKind(i)
	}
	return out
}
