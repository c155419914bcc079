package descriptions

import (
	"fmt"
	"strings"
)

const placeholder = "N/A"

// Input is the listing context a description is generated from. Only Title is required.
type Input struct {
	Title     string
	Category  string
	Condition string
	Price     string
	Currency  string
	Notes     string
}

const promptTemplate = `System: You are a concise marketplace copywriter.
Style: Neutral, factual, 3-4 sentences, no emojis, no sales hype.
Include: item name, material and size only when given, condition, notable details, the price.
Avoid: preambles such as "Here is the description", authenticity claims, shipping or payment text, contact info, HTML.
Output: plain text only.

Item:
- Title: %s
- Category: %s
- Condition: %s
- Price: %s
- Notes: %s

Generate a concise, neutral product description:`

// BuildPrompt renders the generation prompt. Missing fields become N/A so the model always
// sees the same structure.
func BuildPrompt(in Input) string {
	price := placeholder
	if p := strings.TrimSpace(in.Price); p != "" {
		currency := strings.ToUpper(strings.TrimSpace(in.Currency))
		if currency == "" {
			currency = "USD"
		}
		price = p + " " + currency
	}
	return fmt.Sprintf(promptTemplate,
		orPlaceholder(in.Title),
		orPlaceholder(in.Category),
		orPlaceholder(in.Condition),
		price,
		orPlaceholder(in.Notes),
	)
}

func orPlaceholder(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return placeholder
	}
	return value
}
