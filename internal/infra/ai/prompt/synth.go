package prompt

import (
	"fmt"
	"strings"
)

// GetImagePromptSystem frames the prompt-writer model.
func GetImagePromptSystem() string {
	return `You are an expert prompt engineer for text-to-image models used in regulated pharmaceutical marketing. Write a single image generation prompt. Return only the prompt text, with no preamble, no quotes and no markdown.`
}

// GetImagePromptUser builds the instruction from the rubric purpose and audience.
func GetImagePromptUser(imageType, purpose, rubricPurpose, audience string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s image generation prompt.\n", imageType)
	if strings.TrimSpace(purpose) != "" {
		fmt.Fprintf(&b, "\nPurpose of the image:\n%s\n", purpose)
	}
	if strings.TrimSpace(rubricPurpose) != "" {
		fmt.Fprintf(&b, "\nCampaign purpose:\n%s\n", rubricPurpose)
	}
	if strings.TrimSpace(audience) != "" {
		fmt.Fprintf(&b, "\nAudience guidelines:\n%s\n", audience)
	}
	switch imageType {
	case "icon":
		b.WriteString("\nStyle: flat, simple icon on a plain background, no text.")
	case "cartoon":
		b.WriteString("\nStyle: friendly cartoon illustration, soft colors.")
	default:
		b.WriteString("\nStyle: photorealistic, natural lighting, authentic people.")
	}
	return b.String()
}

// GetSlideSystemPrompt is the html/css slide generator framing.
func GetSlideSystemPrompt() string {
	return "You are a helpful assistant that generates HTML and CSS code. Always wrap HTML code in ```html blocks and CSS in ```css blocks."
}

// GetSlideUserPrompt combines the two inputs with the fixed layout rules.
func GetSlideUserPrompt(first, second string) string {
	return fmt.Sprintf(`First input: %s
Second input: %s

Rules:
- Create a beautiful powerpoint-like slide from the inputs above.
- The slide must have a 16:9 aspect ratio.
- The slide must fit the viewport with no scrolling.
- If there is a lot of content, reduce the font size so everything fits.
- Only output the code.`, first, second)
}
