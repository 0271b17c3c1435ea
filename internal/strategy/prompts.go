package strategy

import "github.com/cleared-dev/recon/internal/model"

const statementPrompt = `Analyze this bank statement. Extract:
- Date (YYYY-MM-DD)
- Description
- Amount (number, negative for withdrawal)
- Type (Deposit/Withdrawal)
Return JSON: { "transactions": [{ "date": "...", "description": "...", "amount": 0, "type": "..." }] }`

const formPrompt = `Analyze this form/document. Create a list of fields for a survey.
Extract:
- label (Question text)
- type (text, number, date, select, checkbox)
- options (array of strings if type is select/checkbox)
Return JSON: { "fields": [{ "label": "...", "type": "...", "options": [...] }] }`

const pastedStatementPrompt = `Analyze this text which may be a copy-pasted table.
Extract transactions into a clean JSON format.
Rules:
- Date: YYYY-MM-DD.
- Description: text.
- Amount: number (negative for withdrawal).
- Type: Deposit/Withdrawal.
Return JSON: { "transactions": [{ "date": "...", "description": "...", "amount": 0, "type": "..." }] }
Input:
`

const pastedFormPrompt = `Analyze this text for survey fields.
Each field has a label, a type (text, number, date, select, checkbox) and options for select/checkbox.
Return JSON: { "fields": [{ "label": "...", "type": "...", "options": [...] }] }
Input:
`

// documentPrompt is sent alongside a PDF or image.
func documentPrompt(mode model.Mode) string {
	if mode == model.General {
		return formPrompt
	}
	return statementPrompt
}

// textPrompt embeds text in the instructions.
func textPrompt(mode model.Mode, text string) string {
	if mode == model.General {
		return pastedFormPrompt + text
	}
	return pastedStatementPrompt + text
}
