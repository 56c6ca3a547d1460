package faq

// Config holds runtime knobs for the FAQ service.
type Config struct {
	InstitutionName    string
	SuggestionCount    int
	TopRecommendations int
	UnknownQueueLimit  int
}

func (c Config) withDefaults() Config {
	if c.InstitutionName == "" {
		c.InstitutionName = "LAUTECH"
	}
	if c.SuggestionCount <= 0 {
		c.SuggestionCount = 3
	}
	if c.TopRecommendations <= 0 {
		c.TopRecommendations = 10
	}
	if c.UnknownQueueLimit <= 0 {
		c.UnknownQueueLimit = 50
	}
	return c
}
