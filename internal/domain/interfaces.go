package domain

// KnowledgeStore is the read-only lookup surface the validator consumes.
// Implementations are immutable snapshots: no method mutates backing data,
// and a "not found" outcome is an empty result, never an error.
type KnowledgeStore interface {
	// ResolveDrug attempts an exact case-insensitive match first, then a
	// substring match returning the best single candidate. Fuzzy hits make
	// no confidence claim; interpreting confidence is the caller's job.
	ResolveDrug(text string) (*Concept, bool)

	// ResolveDiagnosis performs an exact match only.
	ResolveDiagnosis(text string) (*Concept, bool)

	// ConceptByID resolves a stable external code, including inactive
	// concepts retained for historical lookups.
	ConceptByID(id string) (*Concept, bool)

	// FindInteraction performs a symmetric pair lookup.
	FindInteraction(drugA, drugB string) (*InteractionFact, bool)

	// FindContraindication performs a directional drug-given-diagnosis lookup.
	FindContraindication(drugID, diagnosisID string) (*ContraindicationFact, bool)

	// Ingredients returns the active-ingredient concept ids of a drug.
	Ingredients(drugID string) []string

	// ConditionKeywords returns the keyword-to-diagnosis mapping table.
	ConditionKeywords() []ConditionKeyword

	// PairKeywords returns the dangerous-pair keyword table.
	PairKeywords() []PairKeyword

	// Version identifies the snapshot content, stable across identical loads.
	Version() string
}

// ConfigManager exposes validated application configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetAuthoringConfig() *AuthoringConfig
	GetCacheConfig() *CacheConfig
	Reload() error
	Validate() error
}
