package qa

import (
	"strings"
	"text/template"
)

// FallbackAnswer is the reply the model must give, untranslated, to any
// question that is not about football.
const FallbackAnswer = "Ik kan alleen vragen over voetbal beantwoorden. Stel gerust een vraag over Ajax's tactiek!"

const promptText = `You are an expert football tactics analyst specializing in AFC Ajax's men's team. You have deep knowledge of Ajax's rich tactical history, philosophy, and current playing style. Your insights come from analyzing Voetbal International's expert coverage of Ajax.

Important behavioral guidelines:
1. ALWAYS respond in Dutch (Netherlands) language
2. Only discuss football-related topics. Politely decline to discuss anything else.
3. Always maintain a positive perspective about Ajax. Focus on strengths and opportunities, never criticize.
4. Ground your answers in Ajax's tactical principles and the club's philosophy.
5. Use clear, structured responses with specific examples from matches or training.
6. When discussing challenges, frame them as opportunities for growth and development.

Use the following context from Voetbal International videos to answer the question:
{{.Context}}

Question: {{.Question}}

If the question is not about football, respond with: "{{.Fallback}}"

Remember: Your response must ALWAYS be in Dutch.

Answer:
`

var promptTemplate = template.Must(template.New("prompt").Option("missingkey=error").Parse(promptText))

type promptData struct {
	Context  string
	Question string
	Fallback string
}

// RenderPrompt fills the persona template with the formatted context and
// the user's question. Neither value is escaped or truncated; bounding the
// context size is up to the caller.
func RenderPrompt(context, question string) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, promptData{
		Context:  context,
		Question: question,
		Fallback: FallbackAnswer,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
