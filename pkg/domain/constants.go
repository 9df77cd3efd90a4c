package domain

// Reserved domains and intents. The domain names are defaults; the engine
// reads the effective names from its configuration.
const (
	CommonDomain     = "common"
	SideSpeechDomain = "side_speech"
	SystemDomain     = "system"

	IntentNoReco             = "noreco"
	IntentSideSpeech         = "side_speech"
	IntentSideSpeechHighConf = "side_speech_highconf"

	IntentDisambiguate           = "disambiguate"
	IntentDisambiguationCallback = "disambiguation_callback"

	// SlotDisambiguatedDomainIntent carries the "domain/intent" chosen by
	// the disambiguation handler.
	SlotDisambiguatedDomainIntent = "disambiguated_domain_intent"
)

// Hypothesis sources set by the engine.
const (
	SourceSynthetic     = "synthetic"
	SourceInvokedAction = "invoked_action"
)
