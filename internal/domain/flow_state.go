package domain

// FlowState is the client-local state of one payment flow instance
type FlowState string

const (
	FlowStateSelectingBank        FlowState = "SELECTING_BANK"
	FlowStateInitiating           FlowState = "INITIATING"
	FlowStateAwaitingConfirmation FlowState = "AWAITING_CONFIRMATION"
	FlowStateConfirming           FlowState = "CONFIRMING"
	FlowStateConfirmed            FlowState = "CONFIRMED"
	FlowStateCancelling           FlowState = "CANCELLING"
	FlowStateCancelled            FlowState = "CANCELLED"
)

// IsTerminal reports whether the flow has finished
func (s FlowState) IsTerminal() bool {
	return s == FlowStateConfirmed || s == FlowStateCancelled
}

// IsInFlight reports whether a gateway call is outstanding in this state
func (s FlowState) IsInFlight() bool {
	switch s {
	case FlowStateInitiating, FlowStateConfirming, FlowStateCancelling:
		return true
	default:
		return false
	}
}
