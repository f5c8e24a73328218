package llm

import "strings"

// paramProfile describes how a model family names its request
// parameters. Newer reasoning families reject the sampling temperature
// and renamed the output cap to max_completion_tokens.
type paramProfile struct {
	prefixes             []string
	supportsTemperature  bool
	usesCompletionTokens bool
}

var profiles = []paramProfile{
	{
		prefixes:             []string{"gpt-5", "o1", "o3"},
		supportsTemperature:  false,
		usesCompletionTokens: true,
	},
}

var defaultProfile = paramProfile{
	supportsTemperature:  true,
	usesCompletionTokens: false,
}

func profileFor(model string) paramProfile {
	for _, p := range profiles {
		for _, prefix := range p.prefixes {
			if strings.HasPrefix(model, prefix) {
				return p
			}
		}
	}
	return defaultProfile
}
