package organizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"go-gallery-archiver/internal/models"
)

const (
	decoratorWidth = 100
	separatorWidth = decoratorWidth / 2
)

// FormatJSON renders the machine-readable metadata file: exactly the
// generation fields, no item id and no asset links.
func FormatJSON(data *models.ItemData) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(out), nil
}

// FormatText renders the human-readable metadata file: a banner header and
// one decorated section per metadata group.
func FormatText(data *models.ItemData) string {
	decorator := strings.Repeat("=", decoratorWidth)
	separator := strings.Repeat("-", separatorWidth)

	var b strings.Builder
	section := func(title string) {
		b.WriteString(separator + "\n")
		b.WriteString(title + "\n")
		b.WriteString(separator + "\n")
	}

	b.WriteString(decorator + "\n")
	b.WriteString("METADATA INFORMATION\n")
	b.WriteString(decorator + "\n\n\n")

	section("PROMPT INFORMATION")
	b.WriteString("Prompt:\n")
	b.WriteString(data.Prompt + "\n\n")
	b.WriteString("Negative:\n")
	b.WriteString(data.NegativePrompt + "\n\n\n")

	section("MODEL INFORMATION")
	fmt.Fprintf(&b, "Name: %s\n", data.Model.Name)
	fmt.Fprintf(&b, "Link: %s\n\n\n", data.Model.Link)

	section("LORA INFORMATION")
	if len(data.Loras) == 0 {
		b.WriteString("None\n")
	}
	for i, lora := range data.Loras {
		fmt.Fprintf(&b, "LoRA %d:\n", i+1)
		fmt.Fprintf(&b, "  Name: %s\n", lora.Name)
		fmt.Fprintf(&b, "  Weight: %s\n", lora.Weight)
		fmt.Fprintf(&b, "  Link: %s\n", lora.Link)
		if i < len(data.Loras)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\n")

	section("GENERATION SETTINGS")
	fmt.Fprintf(&b, "Method: %s\n", data.Method)
	fmt.Fprintf(&b, "Steps: %s\n", data.Steps)
	fmt.Fprintf(&b, "CFG Scale: %s\n", data.Cfg)
	fmt.Fprintf(&b, "Seed: %s\n", data.Seed)
	fmt.Fprintf(&b, "VAE: %s\n\n\n", data.Vae)

	section("SIZE INFORMATION")
	fmt.Fprintf(&b, "Ratio: %s\n", data.Size.Ratio)
	fmt.Fprintf(&b, "Resolution: %s\n\n", data.Size.Resolution)

	b.WriteString(decorator + "\n")
	return b.String()
}
