package responsebuilder

import "strings"

// recognizedKeywords mirrors dapmodel's set; kept independent here since a
// RequestContext is constructed before any CEEvaluator exists for a given
// request.
var recognizedKeywords = map[string]bool{
	"dap2": true, "dap2.0": true, "dap3.2": true, "dap4": true, "dap4.0": true,
}

// RequestContext is the immutable per-response record the builder is
// invoked with: a dataset name, a raw CE, an optional per-response timeout,
// the recognized keywords found in the CE, and a protocol version.
type RequestContext struct {
	DatasetName     string
	RawCE           string
	TimeoutSeconds  int
	Keywords        map[string]bool
	ProtocolVersion string
}

// NewRequestContext strips any recognized keywords from the leading comma
// run of rawCE and records them, leaving the rest of the CE untouched for
// CESplitter/CEEvaluator to parse.
func NewRequestContext(datasetName, rawCE string, timeoutSeconds int, protocolVersion string) RequestContext {
	keywords := make(map[string]bool)
	terms := strings.Split(rawCE, ",")
	i := 0
	for i < len(terms) && recognizedKeywords[strings.TrimSpace(terms[i])] {
		keywords[strings.TrimSpace(terms[i])] = true
		i++
	}
	return RequestContext{
		DatasetName:     datasetName,
		RawCE:           strings.Join(terms[i:], ","),
		TimeoutSeconds:  timeoutSeconds,
		Keywords:        keywords,
		ProtocolVersion: protocolVersion,
	}
}
