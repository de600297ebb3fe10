package types

// Reason codes reported with terminal job and signing request states.
// These are stable strings: they appear in audit payloads and API
// responses consumed by external tooling.
const (
	ReasonSourceVerificationFailed = "SourceVerificationFailed"
	ReasonBuilderTimeout           = "BuilderTimeout"
	ReasonBuilderFailed            = "BuilderFailed"
	ReasonNoConsensus              = "NoConsensus"
	ReasonInsufficientBuilders     = "InsufficientBuilders"
	ReasonCancelled                = "Cancelled"
	ReasonConsensusRequired        = "ConsensusRequired"
	ReasonAuthorizationMismatch    = "AuthorizationMismatch"
	ReasonDenied                   = "Denied"
	ReasonExpired                  = "Expired"
	ReasonHsmUnavailable           = "HsmUnavailable"
	ReasonKeyRevoked               = "KeyRevoked"
	ReasonDuplicateSigningRequest  = "DuplicateSigningRequest"
	ReasonAuthorityRequired        = "SuspensionAuthorityRequired"
)
