package models

// ProviderUsed identifies which generation stage produced an answer
type ProviderUsed string

const (
	ProviderPrimary   ProviderUsed = "primary"
	ProviderSecondary ProviderUsed = "secondary"
	ProviderNone      ProviderUsed = "none"
)

// AttemptFailure describes one failed generation attempt
type AttemptFailure struct {
	Provider      ProviderUsed `json:"provider"`
	CredentialIdx int          `json:"credentialIdx"`
	Error         string       `json:"error"`
}

// AnswerResult is the uniform envelope returned by the answer router. Never cached.
type AnswerResult struct {
	Text            string           `json:"text"`
	ProviderUsed    ProviderUsed     `json:"providerUsed"`
	ModelIdentifier string           `json:"modelIdentifier"`
	Failures        []AttemptFailure `json:"failures,omitempty"`
}
