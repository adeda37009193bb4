package constants

type ServiceKind string

const (
	ServiceKindVectorizer        ServiceKind = "vectorizer"
	ServiceKindLanguageDetection ServiceKind = "language_detection"
)

// LanguageIDModelURL is the public fastText language identification model.
// The language detection service always downloads from here.
const LanguageIDModelURL = "https://dl.fbaipublicfiles.com/fasttext/supervised-models/lid.176.bin"

// LabelPrefix is stripped from predicted fastText labels.
const LabelPrefix = "__label__"

const (
	DatasetData    = "Data"
	DatasetResults = "Results"
)

const (
	FieldID     = "Id"
	FieldText   = "Text"
	FieldVector = "Vector"
	FieldLabel  = "Label"
	FieldScore  = "Score"
)
