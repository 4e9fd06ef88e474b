package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt frames every generation call: the assistant persona, answer
// rules, and style for the admissions office.
const SystemPrompt = `Ты — ассистент приёмной комиссии ALT University.

ПРАВИЛА ОТВЕТОВ:
1. Отвечай коротко, точно и дружелюбно на русском языке
2. Используй ТОЛЬКО факты из предоставленного КОНТЕКСТА
3. Если данных недостаточно — честно скажи об этом и предложи обратиться в приёмную комиссию
4. Форматируй списки и шаги аккуратно
5. Цифры, даты и суммы пиши точно как в КОНТЕКСТЕ
6. В конце ответа предлагай дополнительную помощь или переход к другим разделам

СТИЛЬ: Профессиональный, но дружелюбный. Используй эмодзи умеренно.`

// userPromptTemplate is the per-question prompt body. The two placeholders
// are replaced verbatim by ConstructPrompt.
const userPromptTemplate = `ВОПРОС ПОЛЬЗОВАТЕЛЯ:
{{user_question}}

КОНТЕКСТ ИЗ БАЗЫ ЗНАНИЙ:
{{context_chunks_with_sources}}

ЗАДАЧА:
1) Ответь строго на основе КОНТЕКСТА; не придумывай информацию
2) Если вопрос про программы/стоимость/сроки/документы — приведи конкретные данные из КОНТЕКСТА
3) Если контекста недостаточно — предложи обратиться в приёмную комиссию
4) В конце предложи дополнительную помощь или использование кнопок меню`

// noContextNotice is substituted for the context block when retrieval found
// nothing above the relevance threshold, steering the model toward an honest
// "no information" answer.
const noContextNotice = "Релевантного контекста в базе знаний не найдено. " +
	"Сообщите пользователю, что у вас нет информации по этому вопросу, " +
	"и предложите обратиться в приёмную комиссию напрямую."

// ConstructPrompt renders the final user prompt for the language model. Each
// context appears as a source/content/relevance block; blocks are separated
// by "---" lines. With no contexts, the explicit no-context notice is
// substituted instead.
func ConstructPrompt(userQuestion string, contexts []Context) string {
	contextStr := noContextNotice
	if len(contexts) > 0 {
		blocks := make([]string, 0, len(contexts))
		for _, c := range contexts {
			blocks = append(blocks, fmt.Sprintf("Источник: %s\nСодержание: %s\nРелевантность: %.3f", c.Source, c.Text, c.Score))
		}
		contextStr = strings.Join(blocks, "\n---\n")
	}

	prompt := strings.ReplaceAll(userPromptTemplate, "{{user_question}}", userQuestion)
	prompt = strings.ReplaceAll(prompt, "{{context_chunks_with_sources}}", contextStr)
	return prompt
}
