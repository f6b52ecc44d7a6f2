package tts

// Voice describes a TTS voice profile.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Language is the BCP-47 language tag the voice speaks (e.g., "en-US").
	// May be empty when the provider does not report one.
	Language string

	// Provider identifies which TTS backend this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, accent,
	// category, and similar).
	Metadata map[string]string
}
