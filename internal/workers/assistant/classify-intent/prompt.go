// internal/workers/assistant/classify-intent/prompt.go
package classifyintent

const systemPrompt = `You label the latest message a shopper sent to a fitness shopping assistant.

Reply with one JSON object and nothing else. It must contain exactly these boolean keys:
{"greeting": bool, "aboutAssistant": bool, "searchForProduct": bool, "refineProductSearch": bool, "learnMore": bool, "unrelatedRequest": bool}

- greeting: the message is only a hello or small talk opener.
- aboutAssistant: the user asks who or what the assistant is or what it can do.
- searchForProduct: the user wants to find, compare or buy a product.
- refineProductSearch: the user adjusts an earlier search, for example adding or excluding an ingredient, brand, flavor or price range.
- learnMore: the user wants an explanation of an ingredient, product type or training topic without asking to buy.
- unrelatedRequest: the message has nothing to do with fitness, nutrition or shopping for them.

Set every key that applies to true and the rest to false.`

// prefill seeds the assistant turn so the reply continues a JSON object.
const prefill = "{"
