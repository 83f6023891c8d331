package parse

import (
	"reflect"
	"testing"
)

func TestParseQueryPlanStrictJSON(t *testing.T) {
	raw := `{"search_queries": ["crm tools for smb", "sales automation platforms"], "business_domains": ["SaaS", "Retail"]}`
	plan := ParseQueryPlan(raw)
	wantQ := []string{"crm tools for smb", "sales automation platforms"}
	wantD := []string{"SaaS", "Retail"}
	if !reflect.DeepEqual(plan.SearchQueries, wantQ) {
		t.Fatalf("queries = %v, want %v", plan.SearchQueries, wantQ)
	}
	if !reflect.DeepEqual(plan.BusinessDomains, wantD) {
		t.Fatalf("domains = %v, want %v", plan.BusinessDomains, wantD)
	}
	if len(plan.Messages) != 1 || plan.Messages[0] != raw {
		t.Fatalf("messages should hold the full raw reply, got %v", plan.Messages)
	}
}

func TestParseQueryPlanJSONInsideProseAndFences(t *testing.T) {
	raw := "Sure! Here is the plan you asked for:\n```json\n" +
		`{"search_queries": ["q1"], "business_domains": ["d1"]}` +
		"\n```\nLet me know if you need more."
	plan := ParseQueryPlan(raw)
	if !reflect.DeepEqual(plan.SearchQueries, []string{"q1"}) {
		t.Fatalf("queries = %v", plan.SearchQueries)
	}
	if !reflect.DeepEqual(plan.BusinessDomains, []string{"d1"}) {
		t.Fatalf("domains = %v", plan.BusinessDomains)
	}
}

func TestParseQueryPlanBracesInsideStrings(t *testing.T) {
	raw := `{"search_queries": ["vendors {enterprise} scale", "quote \" inside"], "business_domains": []}`
	plan := ParseQueryPlan(raw)
	if len(plan.SearchQueries) != 2 {
		t.Fatalf("expected 2 queries, got %v", plan.SearchQueries)
	}
	if plan.SearchQueries[0] != "vendors {enterprise} scale" {
		t.Fatalf("brace-bearing query mangled: %q", plan.SearchQueries[0])
	}
}

func TestParseQueryPlanSkipsInvalidCandidateObjects(t *testing.T) {
	raw := `{'single': 'quotes'} then the real one {"search_queries": ["x"], "business_domains": ["y"]}`
	plan := ParseQueryPlan(raw)
	if !reflect.DeepEqual(plan.SearchQueries, []string{"x"}) {
		t.Fatalf("queries = %v", plan.SearchQueries)
	}
}

func TestParseQueryPlanMissingKeysDefaultEmpty(t *testing.T) {
	raw := `{"business_domains": ["Fintech"]}`
	plan := ParseQueryPlan(raw)
	if len(plan.SearchQueries) != 0 {
		t.Fatalf("missing search_queries should stay empty, got %v", plan.SearchQueries)
	}
	if !reflect.DeepEqual(plan.BusinessDomains, []string{"Fintech"}) {
		t.Fatalf("domains = %v", plan.BusinessDomains)
	}
}

func TestParseQueryPlanBulletFallback(t *testing.T) {
	raw := "Here are some ideas:\n" +
		"• lead generation platforms\n" +
		"- b2b contact databases\n" +
		"\n" +
		"* outbound sales tooling\n" +
		"not a bullet line\n"
	plan := ParseQueryPlan(raw)
	want := []string{"lead generation platforms", "b2b contact databases", "outbound sales tooling"}
	if !reflect.DeepEqual(plan.SearchQueries, want) {
		t.Fatalf("queries = %v, want %v", plan.SearchQueries, want)
	}
	if len(plan.BusinessDomains) != 0 {
		t.Fatalf("bullet tier never fills domains, got %v", plan.BusinessDomains)
	}
	if len(plan.Messages) != 1 || plan.Messages[0] != raw {
		t.Fatalf("messages should hold the full raw reply")
	}
}

func TestParseQueryPlanNothingParsableIsEmptyNotError(t *testing.T) {
	raw := "I could not come up with anything useful this time."
	plan := ParseQueryPlan(raw)
	if len(plan.SearchQueries) != 0 || len(plan.BusinessDomains) != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
	if len(plan.Messages) != 1 || plan.Messages[0] != raw {
		t.Fatalf("raw text must be preserved for audit")
	}
}

func TestFirstJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"nested", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, true},
		{"unterminated", `{"a":1`, "", false},
		{"no object", "plain text", "", false},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`, true},
		{"escaped quote", `{"a":"\"}"}`, `{"a":"\"}"}`, true},
		{"second candidate wins", `{oops} {"a":1}`, `{"a":1}`, true},
	}
	for _, tc := range cases {
		got, ok := FirstJSONObject(tc.in)
		if ok != tc.ok {
			t.Fatalf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
		}
		if ok && string(got) != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestParseRankedLeadsPreservesRecordsVerbatim(t *testing.T) {
	raw := "Ranked as requested:\n" +
		`{"high_priority": [{"title":"Acme","url":"https://acme.test","reason":"strong fit"}],` +
		` "medium_priority": [{"title":"Globex","url":"https://globex.test"}],` +
		` "low_priority": []}`
	ranked := ParseRankedLeads(raw)
	if len(ranked.HighPriority) != 1 || len(ranked.MediumPriority) != 1 || len(ranked.LowPriority) != 0 {
		t.Fatalf("tier sizes wrong: %d/%d/%d", len(ranked.HighPriority), len(ranked.MediumPriority), len(ranked.LowPriority))
	}
	if string(ranked.HighPriority[0]) != `{"title":"Acme","url":"https://acme.test","reason":"strong fit"}` {
		t.Fatalf("record not preserved verbatim: %s", ranked.HighPriority[0])
	}
}

func TestParseRankedLeadsPartialTiers(t *testing.T) {
	ranked := ParseRankedLeads(`{"high_priority": [{"title":"Solo"}]}`)
	if len(ranked.HighPriority) != 1 {
		t.Fatalf("high tier lost: %+v", ranked)
	}
	if ranked.MediumPriority != nil || ranked.LowPriority != nil {
		t.Fatalf("absent tiers should stay nil")
	}
}

func TestParseRankedLeadsGarbageIsEmpty(t *testing.T) {
	for _, raw := range []string{
		"no structure at all",
		`{"high_priority": "not a list"}`,
		"",
	} {
		ranked := ParseRankedLeads(raw)
		if !ranked.IsEmpty() {
			t.Fatalf("expected empty tiers for %q, got %+v", raw, ranked)
		}
	}
}

func TestBulletLinesMarkersAndOrder(t *testing.T) {
	raw := "•first\n-  second  \n* third *\n- \nplain"
	got := BulletLines(raw)
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
