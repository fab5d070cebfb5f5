// Package llm wires the embedding and chat models behind the retrieval
// index. Both talk to any OpenAI-compatible endpoint through langchaingo;
// offline variants exist for tests and air-gapped runs.
package llm
