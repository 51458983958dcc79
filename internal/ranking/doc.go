// Package ranking implements the candidate ranking engine: a deterministic,
// transparent, point-based scoring algorithm that orders a noisy list of
// extractor search results against a reference (artists, title, duration)
// query. Every constant the algorithm consults lives on Config; none are
// scattered through the scoring code.
package ranking
