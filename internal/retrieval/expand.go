package retrieval

import "strings"

var interrogativePrefixes = []string{"什么", "如何", "为什么", "请问", "能否", "怎么"}

var domainKeywords = []string{"机器学习", "深度学习", "神经网络", "算法"}

// ExpandQuery derives up to numQueries additional phrasings of a query. The
// original query always comes first and the result never exceeds
// numQueries+1 variants.
func ExpandQuery(query string, numQueries int) []string {
	queries := []string{query}

	hasInterrogative := false
	for _, p := range interrogativePrefixes {
		if strings.HasPrefix(query, p) {
			hasInterrogative = true
			break
		}
	}
	if !hasInterrogative {
		queries = append(queries, "什么是"+query)
	}

	if !strings.Contains(query, "解释") && !strings.Contains(query, "介绍") {
		queries = append(queries, "请解释"+query)
	}

	hasDomain := false
	for _, kw := range domainKeywords {
		if strings.Contains(query, kw) {
			hasDomain = true
			break
		}
	}
	if !hasDomain && len(queries) < numQueries+1 {
		queries = append(queries, "深度学习中的"+query)
	}

	if len(queries) > numQueries+1 {
		queries = queries[:numQueries+1]
	}
	return queries
}
