// internal/models/mode.go
package models

// ResponseMode selects the prompt template and sampling parameters for a turn.
type ResponseMode string

const (
	ModeGreeting      ResponseMode = "greeting"
	ModeAboutSystem   ResponseMode = "about-system"
	ModeProductSearch ResponseMode = "product-search"
	ModeRefineSearch  ResponseMode = "refine-search"
	ModeEducational   ResponseMode = "educational"
	ModeOffTopic      ResponseMode = "off-topic"
)

// AllModes lists every mode in tie-break priority order.
func AllModes() []ResponseMode {
	return []ResponseMode{
		ModeGreeting,
		ModeAboutSystem,
		ModeProductSearch,
		ModeRefineSearch,
		ModeEducational,
		ModeOffTopic,
	}
}

func (m ResponseMode) Valid() bool {
	for _, known := range AllModes() {
		if m == known {
			return true
		}
	}
	return false
}

func (m ResponseMode) String() string {
	return string(m)
}
