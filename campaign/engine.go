package campaign

// Action is the engine's verdict for one campaign evaluation.
type Action string

const (
	// ActionAdvance fires the next step's communication.
	ActionAdvance Action = "advance"
	// ActionWait leaves the campaign untouched until more time elapses.
	ActionWait Action = "wait"
	// ActionResolve closes the campaign as recovered.
	ActionResolve Action = "resolve"
	// ActionAbandon closes the campaign as abandoned, the trigger for
	// subscription cancellation.
	ActionAbandon Action = "abandon"
)

// Decision is the output of one campaign evaluation.
type Decision struct {
	Action Action
	// NextStep is the 1-based step to fire when Action is ActionAdvance.
	NextStep int
}

// Evaluate is the pure dunning step function. Given the campaign's position
// (currentStep of totalSteps), the days elapsed since the last step (or since
// the campaign started, for step 1) and the customer-response flag, it
// returns the next action.
//
// A received response resolves the campaign recovered immediately, at any
// step and independent of retry outcome: a customer action such as updating
// a card is itself meaningful signal. Exhausting all steps without response
// abandons the campaign.
func Evaluate(currentStep, totalSteps int, daysSinceLastStep int, responseReceived bool, stepGap int) Decision {
	if responseReceived {
		return Decision{Action: ActionResolve}
	}

	if currentStep >= totalSteps {
		return Decision{Action: ActionAbandon}
	}

	if daysSinceLastStep < stepGap {
		return Decision{Action: ActionWait}
	}

	return Decision{Action: ActionAdvance, NextStep: currentStep + 1}
}

// EvaluateCampaign applies Evaluate to a stored campaign against its plan,
// measuring elapsed days from the campaign's own timestamps.
func EvaluateCampaign(c *Campaign, p *Plan, nowDaysSinceLastStep int) Decision {
	gap := p.GapBeforeStep(c.CurrentStep + 1)
	return Evaluate(c.CurrentStep, c.TotalSteps, nowDaysSinceLastStep, c.ResponseReceived, gap)
}
