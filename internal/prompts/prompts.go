package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================================
// Content formats
// ============================================================================

// TextFormats maps a text format to the instruction sent to the text builder.
var TextFormats = map[string]string{
	"summary":     "Write a concise summary (120-200 words) for a marketing audience.",
	"blog_post":   "Write a blog post of 600-900 words with a headline, an introduction, three sections with subheadings and a conclusion.",
	"social_post": "Write a social media post under 280 characters with one call to action and up to three hashtags.",
	"newsletter":  "Write a newsletter section with a subject line, a short lead paragraph and three bullet highlights.",
	"key_points":  "List the five to seven most important points as short bullet points.",
}

// ImageFormats maps an image format to the composition hint sent to the image builder.
var ImageFormats = map[string]string{
	"banner": "Wide 16:9 banner composition with clear space for a headline.",
	"square": "Square 1:1 composition suitable for a social media feed.",
	"story":  "Vertical 9:16 composition suitable for stories.",
}

// FormatNames returns the sorted keys of formats.
func FormatNames(formats map[string]string) []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// complianceNote is appended to every generation prompt.
const complianceNote = "Only make claims supported by the source material. Do not invent statistics, prices, guarantees or testimonials."

// BuildTextPrompt assembles the prompt for a text-generation job.
func BuildTextPrompt(format, userPrompt, sourceContext string) string {
	var b strings.Builder
	b.WriteString(TextFormats[format])
	b.WriteString("\n")
	b.WriteString(complianceNote)
	b.WriteString("\n")
	if userPrompt = strings.TrimSpace(userPrompt); userPrompt != "" {
		fmt.Fprintf(&b, "\nInstructions from the user:\n%s\n", userPrompt)
	}
	if sourceContext = strings.TrimSpace(sourceContext); sourceContext != "" {
		fmt.Fprintf(&b, "\nSource material:\n%s\n", truncate(sourceContext, maxContextChars))
	}
	return b.String()
}

// BuildImagePrompt assembles the prompt for an image-generation job.
func BuildImagePrompt(format, userPrompt, sourceContext string) string {
	parts := []string{ImageFormats[format]}
	if userPrompt = strings.TrimSpace(userPrompt); userPrompt != "" {
		parts = append(parts, userPrompt)
	}
	if sourceContext = strings.TrimSpace(sourceContext); sourceContext != "" {
		parts = append(parts, "Theme: "+truncate(sourceContext, 600))
	}
	parts = append(parts, "No text, logos or watermarks in the image.")
	return strings.Join(parts, "\n")
}

// ============================================================================
// Chat
// ============================================================================

// ChatSystemPrompt is the base instruction for answering questions about sources.
const ChatSystemPrompt = `You are a research assistant for a marketing and compliance team.
Answer only from the sources below. When the sources do not contain the answer, say so.
Cite sources by their title in square brackets, e.g. [Quarterly report].`

// SourceContext is one source rendered into a chat prompt.
type SourceContext struct {
	Title string
	Link  string
	Text  string
}

// BuildChatSystem renders the chat system instruction with the selected sources.
func BuildChatSystem(sources []SourceContext) string {
	var b strings.Builder
	b.WriteString(ChatSystemPrompt)
	b.WriteString("\n\nSources:\n")

	budget := maxContextChars
	for i, s := range sources {
		title := s.Title
		if title == "" {
			title = s.Link
		}
		text := truncate(s.Text, budget/(len(sources)-i))
		budget -= len(text)
		fmt.Fprintf(&b, "\n### [%s]\n%s\n", title, text)
	}
	return b.String()
}

// ============================================================================
// Suggested questions
// ============================================================================

// QuestionsCount is how many questions are requested per source.
const QuestionsCount = 5

// BuildQuestionsPrompt asks for follow-up questions about one source.
func BuildQuestionsPrompt(title, text string) string {
	return fmt.Sprintf(`Suggest %d questions a marketer could ask about the source "%s".
Return one question per line, without numbering or commentary.

Source:
%s`, QuestionsCount, title, truncate(text, maxContextChars))
}

// ============================================================================
// Helpers
// ============================================================================

const maxContextChars = 24000

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
