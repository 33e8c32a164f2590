package reporter

import (
	"errors"
	"fmt"
)

// DeliveryKind classifies a failed notification delivery. The reporter bases
// its retry/disable/release decisions on the kind alone, never on the raw
// transport error.
type DeliveryKind int

const (
	// KindTransient covers rate limits, timeouts and any response the
	// classifier does not recognize. Safe to retry.
	KindTransient DeliveryKind = iota
	// KindUnknownChannel means the destination channel or user no longer
	// exists (or never did).
	KindUnknownChannel
	// KindUnknownMessage means the message we tried to edit or delete is gone.
	KindUnknownMessage
	// KindMissingPermission means the bot is in the guild but lacks the
	// permission for the attempted action.
	KindMissingPermission
	// KindMissingAccess means the bot cannot see the destination at all,
	// typically after being kicked from the guild.
	KindMissingAccess
	// KindCannotDM means the recipient does not accept direct messages from
	// the bot.
	KindCannotDM
)

func (k DeliveryKind) String() string {
	switch k {
	case KindUnknownChannel:
		return "unknown-channel"
	case KindUnknownMessage:
		return "unknown-message"
	case KindMissingPermission:
		return "missing-permission"
	case KindMissingAccess:
		return "missing-access"
	case KindCannotDM:
		return "cannot-dm"
	default:
		return "transient"
	}
}

// DeliveryError wraps a transport error with its classified kind.
type DeliveryError struct {
	Kind DeliveryKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// KindOf extracts the delivery kind from err. Errors that are not a
// DeliveryError are treated as transient.
func KindOf(err error) DeliveryKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}

// destinationGone reports whether err means the destination itself can never
// be delivered to again, as opposed to this particular attempt failing.
func destinationGone(err error) bool {
	switch KindOf(err) {
	case KindUnknownChannel, KindMissingAccess, KindCannotDM:
		return true
	}
	return false
}
