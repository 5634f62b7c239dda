package prompts

// SynthesisInstruction nudges a model that returned an empty completion
// after tool results. It is appended as a transient user turn for the
// retry and removed from the transcript afterwards.
func SynthesisInstruction() string {
	return `Please summarize the results of the tool calls above and answer the user's original question in plain language. Respond with text only; do not call any more tools.`
}

// SynthesisFallback is the canned reply used when every synthesis retry
// still produced nothing usable.
func SynthesisFallback() string {
	return "I ran the requested tools but was unable to compose a summary of the results. The raw tool output is recorded in the conversation."
}

// ExhaustionInstruction is appended when the iteration budget is spent
// and the model must wrap up. Tools are withheld on this final call.
func ExhaustionInstruction() string {
	return `You have used all available tool-calling iterations for this request. Using only the information gathered so far, give the user your best final answer now. Do not call any more tools.`
}

// EmptyReplyFallback is the marker used when the model returns an empty
// completion on a plain conversational turn with no tool activity.
func EmptyReplyFallback() string {
	return "I don't have a response for that. Could you rephrase?"
}
