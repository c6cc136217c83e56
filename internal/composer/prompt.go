package composer

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	knowledgeHeader   = "[Additional Knowledge]\n"
	companyDataHeader = "[Company Data]"
	tablesLabel       = "[Authorized Tables] "

	// NoTables is written in place of the table list when none are authorized.
	NoTables = "none"

	closingInstruction = "Answer the user's question using the data provided above. " +
		"If answering would require a database operation (insert, update, delete or query), " +
		"describe the operation you would perform instead of executing it."
)

// Input carries everything that goes into the system instruction.
type Input struct {
	SystemPrompt     string
	CustomKnowledge  string
	CompanyData      string
	AuthorizedTables []string
}

// SystemPrompt builds the system instruction. Sections are always emitted in
// this order: system prompt, knowledge, company data, authorized tables,
// closing instruction. Knowledge and company data are skipped when empty.
func SystemPrompt(in Input) string {
	var sb strings.Builder

	sb.WriteString(in.SystemPrompt)

	if in.CustomKnowledge != "" {
		sb.WriteString("\n\n")
		sb.WriteString(knowledgeHeader)
		sb.WriteString(in.CustomKnowledge)
	}

	if in.CompanyData != "" {
		sb.WriteString("\n\n")
		sb.WriteString(companyDataHeader)
		sb.WriteString(in.CompanyData)
	}

	sb.WriteString("\n\n")
	sb.WriteString(tablesLabel)
	sb.WriteString(TableList(in.AuthorizedTables))

	sb.WriteString("\n\n")
	sb.WriteString(closingInstruction)

	return sb.String()
}

// TableList renders the authorized tables as a comma separated list, or
// NoTables when the list is empty.
func TableList(tables []string) string {
	if len(tables) == 0 {
		return NoTables
	}
	return strings.Join(tables, ", ")
}

// TableBlock renders one table's rows as a context block to be appended to
// the company data accumulator.
func TableBlock(table string, rows any) (string, error) {
	dump, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing rows of %s: %w", table, err)
	}
	return fmt.Sprintf("\n\nTable %s:\n%s", table, dump), nil
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
