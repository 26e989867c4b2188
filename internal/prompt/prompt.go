package prompt

import "strings"

// Negative is the negative prompt sent with every generation. The cover
// pipeline renders its own typography, so the model must not.
const Negative = "text, letters, words, typography, logos with text, blurry, low quality, distorted, watermark"

const basePrompt = "professional cryptocurrency background, modern digital finance"

// Input carries everything prompt construction looks at.
type Input struct {
	Title        string
	ClientID     string
	CustomPrompt string
}

// Build assembles the generation prompt. A custom prompt replaces the themed
// base entirely; otherwise the base is enriched with client- and title-keyed
// theming and closed with quality modifiers.
func Build(in Input) string {
	custom := strings.TrimSpace(in.CustomPrompt)
	if custom != "" {
		return custom
	}

	parts := []string{basePrompt}
	if theme := clientTheme(in.ClientID); theme != "" {
		parts = append(parts, theme)
	}
	if theme := titleTheme(in.Title); theme != "" {
		parts = append(parts, theme)
	}
	parts = append(parts, "high quality, professional, clean composition, 8k resolution")
	return strings.Join(parts, ", ")
}

func clientTheme(clientID string) string {
	id := strings.ToLower(strings.TrimSpace(clientID))
	switch {
	case id == "":
		return ""
	case strings.Contains(id, "xdc"):
		return "XDC network theme, enterprise blockchain, banking integration"
	case strings.Contains(id, "hedera"), strings.Contains(id, "hbar"):
		return "Hedera hashgraph theme, distributed ledger technology"
	case strings.Contains(id, "algorand"):
		return "Algorand blockchain theme, proof of stake, green technology"
	case strings.Contains(id, "constellation"):
		return "Constellation DAG theme, distributed network visualization"
	case strings.Contains(id, "hashpack"):
		return "Hedera wallet theme, secure crypto storage"
	case strings.Contains(id, "tha"):
		return "THA blockchain theme, professional crypto services"
	case strings.Contains(id, "genfinity"):
		return "Genfinity media theme, crypto news and analysis"
	}
	return ""
}

func titleTheme(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "bitcoin"):
		return "bitcoin orange theme"
	case strings.Contains(t, "ethereum"):
		return "ethereum blue theme"
	case strings.Contains(t, "defi"):
		return "decentralized finance symbols"
	}
	return ""
}
