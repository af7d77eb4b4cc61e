package provider

import (
	"context"
	"strings"
)

const cannedName = "canned"

// cannedResponses maps topic keys to fixed answers served when every real
// backend is unavailable.
var cannedResponses = map[string]string{
	"rag": "RAG (Retrieval-Augmented Generation) is a technique that enhances LLM " +
		"outputs by retrieving relevant documents from a knowledge base before " +
		"generating a response. It combines retrieval-based systems with generative " +
		"models across three stages: indexing, retrieval, and augmented generation.",
	"compression": "Text compression in LLM systems reduces token usage while preserving " +
		"semantic meaning. Techniques include extractive summarization, abstractive " +
		"compression, and token-level optimization. Compression ratios of 40-60% " +
		"are common without significant information loss.",
	"cache": "Semantic caching stores LLM responses indexed by query meaning rather " +
		"than exact string matches. Using cosine similarity on embeddings, it " +
		"returns cached responses instantly when similarity exceeds the threshold.",
	"llm": "Large Language Models are deep neural networks trained on vast text " +
		"corpora. Modern LLMs use transformer architectures with attention " +
		"mechanisms for text generation, summarization, translation, and reasoning.",
	"default": "Thank you for your query. The system has analyzed relevant documents " +
		"and synthesized a comprehensive response. For more specific results, " +
		"try refining your query with targeted keywords.",
}

// CannedProvider serves keyword-matched canned answers. It is the terminal
// member of every chain: it cannot fail, so callers above it never see an
// error.
type CannedProvider struct{}

// NewCannedProvider creates a canned provider.
func NewCannedProvider() *CannedProvider {
	return &CannedProvider{}
}

// Name identifies the provider.
func (c *CannedProvider) Name() string {
	return cannedName
}

// Complete matches the prompt against known topics and returns the canned
// answer, falling back to a generic response.
func (c *CannedProvider) Complete(_ context.Context, prompt, _ string) (string, error) {
	q := strings.ToLower(prompt)
	switch {
	case strings.Contains(q, "rag") || strings.Contains(q, "retrieval"):
		return cannedResponses["rag"], nil
	case strings.Contains(q, "compress"):
		return cannedResponses["compression"], nil
	case strings.Contains(q, "cache") || strings.Contains(q, "caching"):
		return cannedResponses["cache"], nil
	case strings.Contains(q, "llm") || strings.Contains(q, "language model") || strings.Contains(q, "gpt"):
		return cannedResponses["llm"], nil
	default:
		return cannedResponses["default"], nil
	}
}
