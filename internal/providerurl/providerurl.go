// Package providerurl normalizes the base URLs of model providers.
//
// OpenAI compatible providers get the "/v1" suffix appended. A trailing "#" on the
// input disables the suffix so gateways with custom paths can be used as is.
package providerurl

import "strings"

const disableSuffixMarker = "#"

var defaults = map[string]string{
	"openai":           "https://api.openai.com",
	"openai-responses": "https://api.openai.com",
	"anthropic":        "https://api.anthropic.com",
	"gemini":           "https://generativelanguage.googleapis.com",
	"cohere":           "https://api.cohere.com",
	"jina":             "https://api.jina.ai",
}

func isOpenAICompatible(providerType string) bool {
	return providerType == "openai" || providerType == "openai-responses"
}

// Normalize returns the normalized base URL, or empty if there is none.
func Normalize(providerType, baseURL string) string {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return ""
	}

	disableSuffix := strings.HasSuffix(raw, disableSuffixMarker)
	raw = strings.TrimSuffix(raw, disableSuffixMarker)
	trimmed := strings.TrimRight(raw, "/")
	if trimmed == "" {
		return ""
	}

	if !isOpenAICompatible(providerType) || disableSuffix || strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}

	return trimmed + "/v1"
}

// Default returns the default base URL of a provider.
func Default(providerType string) (string, bool) {
	u, ok := defaults[providerType]
	return u, ok
}

// ResolvedForDisplay returns the base URL that will be used for a provider, falling back
// to the provider default when the input is empty.
func ResolvedForDisplay(providerType, baseURL string) (string, bool) {
	if u := Normalize(providerType, baseURL); u != "" {
		return u, true
	}

	def, ok := Default(providerType)
	if !ok {
		return "", false
	}

	return Normalize(providerType, def), true
}
