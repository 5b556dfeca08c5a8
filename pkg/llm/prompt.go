package llm

import "fmt"

// RAGSystemPrompt frames the model as a grounded research assistant. Answers
// must come from the provided excerpts, with an explicit refusal otherwise.
const RAGSystemPrompt = "You are a helpful research assistant. Answer questions based on the " +
	"provided research paper excerpts. Always cite which paper/source your information " +
	"comes from. If the context doesn't contain relevant information, say so clearly."

// BuildRAGPrompt assembles the user prompt from retrieved context and the
// question, instructing the model to cite sources in [Source N] format.
func BuildRAGPrompt(contextText, question string) string {
	return fmt.Sprintf(
		"Based on the following research paper excerpts, answer the question.\n\n"+
			"CONTEXT:\n%s\n\nQUESTION: %s\n\n"+
			"Provide a comprehensive answer based on the context above. "+
			"Cite sources using [Source N] format.",
		contextText, question)
}
