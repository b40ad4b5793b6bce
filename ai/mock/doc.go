// Package mock provides test double implementations of AI service interfaces.
//
// The mocks allow tests to run without an embedding provider and give
// controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	vector, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float64, error) {
//	    return nil, errors.New("rate limited")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
// MockEmbedder returns deterministic unit vectors of DefaultDimensions derived
// from an FNV hash of the text.
package mock
