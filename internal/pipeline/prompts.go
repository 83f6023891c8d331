package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

const enhanceTemplate = `You are a B2B lead research assistant. Given a product, produce optimized web
search queries for finding potential customer organizations, plus the business
domains and industries where the product fits best.

Product name: %s
Description: %s
Key features: %s
Competitors: %s

Respond with a single JSON object of the form:
{"search_queries": ["..."], "business_domains": ["..."]}

Return 5-8 specific search queries and 3-6 business domains. Do not include
any text outside the JSON object.`

const rankTemplate = `You are a lead prioritization assistant. Rank the candidate organizations
below by how likely they are to buy the product, into HIGH, MEDIUM and LOW
priority tiers.

Product name: %s
Description: %s
Key features: %s
Competitors: %s
Value proposition: %s
Customer profile: %s
Business domains: %s

Candidate organizations, grouped by the search query that found them:
%s

Respond with a single JSON object of the form:
{"high_priority": [...], "medium_priority": [...], "low_priority": [...]}
where each entry keeps the candidate's fields and adds a one-line "reason".
Do not include any text outside the JSON object.`

func enhancePrompt(state State) string {
	return fmt.Sprintf(enhanceTemplate,
		state.ProductName,
		state.Description,
		strings.Join(state.Features, ", "),
		strings.Join(state.Competitors, ", "),
	)
}

func rankPrompt(state State) (string, error) {
	companies, err := json.MarshalIndent(state.ScrapedLeads, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(rankTemplate,
		state.ProductName,
		state.Description,
		strings.Join(state.Features, ", "),
		strings.Join(state.Competitors, ", "),
		state.ValueProp,
		state.CustomerProfile,
		strings.Join(state.BusinessDomains, ", "),
		companies,
	), nil
}

// valueProp flattens the product fields into the one-line pitch fed to the
// ranking prompt.
func valueProp(state State) string {
	return fmt.Sprintf("%s: %s. Key features include %s.",
		state.ProductName, state.Description, strings.Join(state.Features, ", "))
}

func customerProfile(state State) string {
	return "Ideal customers include businesses in " + strings.Join(state.BusinessDomains, ", ") + "."
}
