// internal/workers/shopping/extract-formula/prompt.go
package extractformula

const systemPrompt = `You read the text of a fitness supplement product page and return only its ingredient list.

Rules:
1. Find the supplement facts, formula or ingredients section.
2. List every ingredient with its amount per serving when the page gives one.
3. Write one ingredient per line as a numbered list: "1. Ingredient Name (Amount)".
4. Omit the amount in parentheses when the page does not state it.
5. Keep trademark symbols such as ® and ™ and copy spelling and capitalization exactly.
6. Output nothing except the list. No headings, notes or markdown.

If the page has no ingredient information, reply with exactly: NONE`

// notFoundReply is what the model returns for pages without a formula.
const notFoundReply = "NONE"
