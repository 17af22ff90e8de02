package retrieval

import "regexp"

// IntentKind is the light classification of a query's expected response
// shape.
type IntentKind string

const (
	IntentQA         IntentKind = "qa"
	IntentComparison IntentKind = "comparison"
	IntentCount      IntentKind = "count"
	IntentList       IntentKind = "list"
)

// Intent is the result of classifying a query: its kind plus any filters
// extracted from the query text itself.
type Intent struct {
	Kind  IntentKind
	Years []int
}

var (
	comparisonPattern = regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|difference between)\b`)
	countPattern      = regexp.MustCompile(`(?i)\b(how many|count of|number of)\b`)
	listPattern       = regexp.MustCompile(`(?i)\b(list|which documents|all (policies|circulars|documents))\b`)
	yearPattern       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// ClassifyIntent runs the keyword/regex classifier over a raw query
// string. Comparison is checked first since a comparison query ("compare
// X and Y") can also contain "list"-like phrasing that would otherwise
// misclassify it.
func ClassifyIntent(query string) Intent {
	intent := Intent{Kind: IntentQA}

	switch {
	case comparisonPattern.MatchString(query):
		intent.Kind = IntentComparison
	case countPattern.MatchString(query):
		intent.Kind = IntentCount
	case listPattern.MatchString(query):
		intent.Kind = IntentList
	}

	for _, m := range yearPattern.FindAllString(query, -1) {
		year := 0
		for _, r := range m {
			year = year*10 + int(r-'0')
		}
		intent.Years = append(intent.Years, year)
	}

	return intent
}
