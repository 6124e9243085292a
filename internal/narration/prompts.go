package narration

import "fmt"

func summaryPrompt(title, author string, lang Language) string {
	return fmt.Sprintf(`Generate a structured summary for the book %q by %s.
Language: %s.

Return a JSON object with these fields:
- mainIdea: a concise summary of the book's core concept (30 to 50 words).
- keyPoints: 3 to 5 major arguments or concepts presented in the book.
- lessons: 3 actionable lessons or takeaways for the reader.
- quote: one famous or impactful quote from the book.

Write every field in %s.`, title, author, lang, lang)
}

func documentPrompt(lang Language) string {
	return fmt.Sprintf(`Analyze the attached document and write a comprehensive summary in %s of about 600 words.

Structure it as:
1. **Introduction**: the document's purpose.
2. **Core Arguments/Findings**: the main points in detail.
3. **Conclusion**: final thoughts or implications.

Format the output as Markdown.`, lang)
}

func translatePrompt(text string, lang Language) string {
	return fmt.Sprintf(`Translate the following text into %s.
Keep the tone engaging and suitable for narration.
Return only the translated text, with no markdown and no preamble.

Text: %q`, lang, text)
}
