package models

const (
	// ContextKey and ExistingAnswerKey are owned by the refine loop; callers
	// must not supply them.
	ContextKey        = "context"
	ExistingAnswerKey = "existing_answer"

	// JSONSchemaKey carries the caller's schema into the extraction prompts.
	JSONSchemaKey = "jsonSchema"

	DefaultChunkSize    = 2000 // runes
	DefaultChunkOverlap = 200  // runes

	DefaultTemperature    = 0.8
	DefaultMaxConcurrency = 10
	DefaultMaxRetries     = 3

	DefaultPDFMaxSize = 5 * 1024 * 1024 // bytes

	CodeFenceRegex = "(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$"
	ThinkTag       = `(?s)<think>.*?</think>`
)

var (
	JSONSchemaPromptTemplate = `You are a highly skilled AI that extracts structured data from text.
Extract the information from the text below and return it as a single JSON object that conforms to this JSON schema:
{jsonSchema}

Text:
{context}

Answer only with the JSON object, no comments and no code fences.
`

	JSONSchemaInitialPromptTemplate = `You are a highly skilled AI that extracts structured data from text.
The text is long, so it is given to you in parts. Here is the first part:
------------
{context}
------------
Extract the information from this part and return it as a single JSON object that conforms to this JSON schema:
{jsonSchema}

Answer only with the JSON object, no comments and no code fences.
`

	JSONSchemaRefinePromptTemplate = `You are a highly skilled AI that extracts structured data from text.
You have already extracted the following JSON from the previous parts of a long text:
{existing_answer}

Here is the next part of the text:
------------
{context}
------------
Refine the existing JSON with any new or more precise information from this part. Keep every value that is still correct.
The result must conform to this JSON schema:
{jsonSchema}

Answer only with the JSON object, no comments and no code fences.
`
)
