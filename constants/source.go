package constants

// FieldSource records which stage produced a field value.
type FieldSource string

const (
	SourceHeuristic FieldSource = "heuristic"
	SourceLLM       FieldSource = "llm"
	SourceNone      FieldSource = "none"
)

// OCREngine tags the collaborator that produced a block.
type OCREngine string

const (
	EngineTextLayer     OCREngine = "text-layer"
	EngineLocalPrimary  OCREngine = "local-primary"
	EngineCloudFallback OCREngine = "cloud-fallback"
)

// CallClass identifies a downstream call budget.
type CallClass string

const (
	CallClassOCR   CallClass = "ocr"
	CallClassLLM   CallClass = "llm"
	CallClassDocAI CallClass = "docai"
)
