package prompts

// Templates for the model calls made by the chunking, summarization,
// and retrieval paths. Slots are filled with fmt.Sprintf; each doc
// comment names the slot order.
const (
	// ChunkBoundariesPrompt asks for the last sentence of each complete
	// span inside one coarse window. Slot: the window text.
	ChunkBoundariesPrompt = `You are a text analysis expert. Find the points where the following text completes a thought.

<task>
List the last sentence of each semantically complete span in the text, in order of appearance.
</task>

<rules>
- Copy each sentence exactly as it appears in the text.
- Output one sentence per line.
- Do not add numbering, bullets, explanations, or code fences.
</rules>

<text>
%s
</text>

Last sentences:`

	// ChunkPlanPrompt asks for a whole-document chunking plan over a
	// numbered sentence list. Slot: the numbered sentences.
	ChunkPlanPrompt = `You are a text analysis expert. Your only job is to group the numbered sentences below into semantically coherent chunks and output the result in the required JSON format.

<sentences>
%s
</sentences>

<task>
Group the sentences into chunks by topic, in reading order. Aim for 5 to 20 sentences per chunk. For every chunk, report its first and last sentence, copied exactly from the list above.
</task>

<rules>
- Output exactly one JSON object and nothing else.
- Your response must start with { and end with }.
- Do not include explanations, greetings, tags, or code fences.
</rules>

<output_format>
{"chunks": [{"first": "<string>", "last": "<string>"}]}
</output_format>

Start the JSON output now:`

	// RepairJSONPrompt is the single retry issued after a malformed
	// structured reply. Slots: the required schema, then the previous
	// (truncated) output.
	RepairJSONPrompt = `The previous output violated the rules. Re-read them and reply with exactly one JSON object, no explanations. Your response must start with {.

<output_format>
%s
</output_format>

<previous_invalid_output>
%s
</previous_invalid_output>

Output the corrected JSON now:`

	// ChunkSummaryPrompt summarizes one chunk. Slot: the chunk text.
	ChunkSummaryPrompt = `Summarize the following text in one or two sentences:

%s`

	// FileSummaryPrompt combines chunk summaries into a file summary.
	// Slot: the newline-joined chunk summaries.
	FileSummaryPrompt = `Combine the following summaries into a final summary of two or three sentences:

%s`

	// DiffSummaryPrompt summarizes an update's textual diff. Slot: the
	// diff text.
	DiffSummaryPrompt = `Summarize the following document change in one or two sentences:

%s`

	// RetrievalDecisionPrompt drives one iteration of the retrieval
	// loop. Slots: the user question, the accumulated context, and the
	// mode instruction for this iteration.
	RetrievalDecisionPrompt = `User question: %s

Information collected so far:
%s

%s

Important: answer only from the retrieved information above. If it is insufficient, say so instead of guessing.

<output_format>
{"answer": "<string>", "need_more": <bool>, "next_query": "<string>"}
</output_format>

All three fields are required. Output exactly one JSON object:`
)

// Per-mode instructions injected into RetrievalDecisionPrompt.
const (
	// NormalModeInstruction forbids further search passes outright.
	NormalModeInstruction = `This is quick-answer mode. Answer with the information at hand.
- answer: a direct answer to the question
- need_more: this field MUST be false
- next_query: this field MUST be an empty string`

	// DeepModeInstruction is used on non-final deep-mode iterations.
	// Slot: the iteration number.
	DeepModeInstruction = `This is balanced exploration mode, pass %d. Judge whether the information is sufficient.
- answer: your current analysis or an interim answer
- need_more: true if another search would help, false if the information suffices
- next_query: the next search query if needed, otherwise ""`

	// DeeperModeInstruction is used on non-final deeper-mode
	// iterations. Slots: the iteration number and the strategy label.
	DeeperModeInstruction = `This is in-depth analysis mode, pass %d: %s.
Judge whether this pass's goal needs more exploration.
- answer: your analysis so far
- need_more: true if the goal needs more information
- next_query: a search query from a new angle fitting the next step`

	// FinalIterationInstruction is used on the last allowed iteration
	// of deep and deeper modes. Slot: the iteration number.
	FinalIterationInstruction = `This is the final pass (%d). Give your conclusive answer from the collected information.
- answer: a comprehensive final answer, or an explicit statement that the information is insufficient
- need_more: this field MUST be false
- next_query: this field MUST be an empty string`
)

// NoContextPlaceholder stands in for the context block before any
// search pass has returned results.
const NoContextPlaceholder = "No information has been collected yet."
