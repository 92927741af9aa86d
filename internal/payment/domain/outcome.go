package domain

// OutcomeKind is the closed set of settlement results the core reasons
// about. Raw gateway strings are translated once, at the gateway boundary,
// and never inspected past that point.
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeDeclined      OutcomeKind = "declined"
	OutcomePendingReview OutcomeKind = "pending_review"
)

type Outcome struct {
	Kind       OutcomeKind
	ResultCode string
	// Reason is a customer-safe description for declines; never the raw code.
	Reason string
}

// TargetStatus maps a gateway outcome onto the attempt state it settles to.
func (o Outcome) TargetStatus() AttemptStatus {
	switch o.Kind {
	case OutcomeSuccess:
		return AttemptSettledSuccess
	case OutcomePendingReview:
		return AttemptPendingReview
	default:
		return AttemptSettledFailure
	}
}

// FinalOutcome is what Finalize returns. Replayed finalizations return the
// same value with AlreadySettled set.
type FinalOutcome struct {
	Status         AttemptStatus
	OrderNumber    string
	ResultCode     string
	Reason         string
	AlreadySettled bool
}

func (f FinalOutcome) Succeeded() bool {
	return f.Status == AttemptSettledSuccess
}

// OpaqueForm is the gateway's strong-authentication payload: a third-party
// document the core hands to the browser verbatim, never parses.
type OpaqueForm struct {
	ContentType string
	Body        []byte
}

// InstallmentPlan is one option returned by the quoter. Ephemeral; never
// persisted or cached.
type InstallmentPlan struct {
	Count               int
	PerInstallmentCents int64
	TotalCents          int64
	BankName            string
	CardFamily          string
}

// AuthorizationResult is the initiator's answer: either the payment settled
// inline, or the cardholder must complete bank authentication first.
type AuthorizationResult struct {
	RequiresAuthentication bool
	Form                   OpaqueForm
	GatewayAttemptID       string
	OrderNumber            string
	Final                  *FinalOutcome
}

// CardDetails is held in memory for the duration of one authorization call
// and never persisted.
type CardDetails struct {
	HolderName  string
	Number      string
	ExpireMonth string
	ExpireYear  string
	CVC         string
}

type Buyer struct {
	Name  string
	Email string
}

type AuthorizationRequest struct {
	GatewayAttemptID string
	AmountCents      int64
	Currency         string
	Installments     int
	Card             CardDetails
	Buyer            Buyer
}

// GatewayAuthorization is the gateway's translated answer to Authorize: an
// opaque authentication form, or an immediate outcome.
type GatewayAuthorization struct {
	RequiresAuthentication bool
	Form                   OpaqueForm
	Outcome                Outcome
}
