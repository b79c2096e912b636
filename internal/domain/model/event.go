// Package model contains domain models passed between layers.
package model

// Kind discriminates the recognized combat-log event kinds. The set is
// closed: dispatch sites switch over it exhaustively and treat anything
// else as an explicit no-op arm.
type Kind uint8

// Recognized event kinds.
const (
	KindUnknown Kind = iota
	KindStaggerAdd
	KindStaggerRemove
	KindDamage
	KindHeal
	KindDeath
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStaggerAdd:
		return "stagger_add"
	case KindStaggerRemove:
		return "stagger_remove"
	case KindDamage:
		return "damage"
	case KindHeal:
		return "heal"
	case KindDeath:
		return "death"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire name to a Kind. Unknown names map to KindUnknown,
// which downstream ingestion ignores.
func ParseKind(s string) Kind {
	switch s {
	case "stagger_add":
		return KindStaggerAdd
	case "stagger_remove":
		return KindStaggerRemove
	case "damage":
		return KindDamage
	case "heal":
		return KindHeal
	case "death":
		return KindDeath
	default:
		return KindUnknown
	}
}

// Event is a single combat-log record scoped to one encounter and the
// tracked participant. Kind selects which optional fields are meaningful.
//
// Timestamps are encounter-relative milliseconds and arrive in
// non-decreasing order; the dispatcher guarantees ordering, the domain
// does not re-sort.
type Event struct {
	EventID     string // unique id for idempotent replays
	EncounterID string
	Kind        Kind
	Timestamp   int64

	// Stagger mutations. NewPooled is the pool level resulting from the
	// mutation when the log carried one; gains frequently omit it and the
	// value is passed through as-is, never interpolated.
	NewPooled *float64
	// Amount is the pool delta on removals (the amount purified when the
	// removal was triggered by the purification ability).
	Amount float64
	// AbilityID identifies the ability that triggered a removal.
	AbilityID int64

	// Damage/Heal health snapshots as of this event. Zero means the log
	// did not carry the field.
	HitPoints    int64
	MaxHitPoints int64
}
