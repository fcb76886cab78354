package mem

import "github.com/cockroachdb/errors"

var (
	// ErrNotInitialized indicates a Manager operation before Initialize or
	// after Shutdown.
	ErrNotInitialized = errors.New("mem: manager not initialized")

	// ErrAlreadyInitialized indicates a second Initialize with a budget that
	// differs from the live one. The live partition is kept.
	ErrAlreadyInitialized = errors.New("mem: manager already initialized")

	// ErrReservationFailed indicates the OS refused the backing reservation.
	// The underlying cause is attached.
	ErrReservationFailed = errors.New("mem: OS memory reservation failed")

	// ErrZoneExhausted indicates a carve request larger than the zone's
	// remaining capacity. Zone state is unchanged.
	ErrZoneExhausted = errors.New("mem: zone exhausted")

	// ErrUnknownZone indicates a ZoneKind outside the defined set or a zone
	// name that does not parse.
	ErrUnknownZone = errors.New("mem: unknown zone")

	// ErrInvalidBudget indicates a budget that fails validation: no zones,
	// a duplicate or unknown zone, a negative weight or bound, or bounds
	// with max below min.
	ErrInvalidBudget = errors.New("mem: invalid budget")
)

func errUnknownZoneName(name string) error {
	return errors.Wrapf(ErrUnknownZone, "no zone named %q", name)
}
