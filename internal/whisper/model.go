package whisper

import (
	"sort"
	"strings"
)

// DefaultModel is used when a request names no model or an unknown one.
const DefaultModel = "base"

type Model struct {
	Name     string
	FileName string
	URL      string
	// SHA256 pins the download checksum; empty means verification is
	// skipped for that model.
	SHA256 string
}

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// catalog holds every model a request may name. "large" is an alias for the
// newest large revision and shares its file.
var catalog = map[string]Model{
	"tiny.en": {
		Name:     "tiny.en",
		FileName: "ggml-tiny.en.bin",
		URL:      modelBaseURL + "ggml-tiny.en.bin",
	},
	"tiny": {
		Name:     "tiny",
		FileName: "ggml-tiny.bin",
		URL:      modelBaseURL + "ggml-tiny.bin",
		SHA256:   "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	},
	"base.en": {
		Name:     "base.en",
		FileName: "ggml-base.en.bin",
		URL:      modelBaseURL + "ggml-base.en.bin",
	},
	"base": {
		Name:     "base",
		FileName: "ggml-base.bin",
		URL:      modelBaseURL + "ggml-base.bin",
		SHA256:   "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	},
	"small.en": {
		Name:     "small.en",
		FileName: "ggml-small.en.bin",
		URL:      modelBaseURL + "ggml-small.en.bin",
	},
	"small": {
		Name:     "small",
		FileName: "ggml-small.bin",
		URL:      modelBaseURL + "ggml-small.bin",
		SHA256:   "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	},
	"medium.en": {
		Name:     "medium.en",
		FileName: "ggml-medium.en.bin",
		URL:      modelBaseURL + "ggml-medium.en.bin",
	},
	"medium": {
		Name:     "medium",
		FileName: "ggml-medium.bin",
		URL:      modelBaseURL + "ggml-medium.bin",
		SHA256:   "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	},
	"large-v1": {
		Name:     "large-v1",
		FileName: "ggml-large-v1.bin",
		URL:      modelBaseURL + "ggml-large-v1.bin",
	},
	"large-v2": {
		Name:     "large-v2",
		FileName: "ggml-large-v2.bin",
		URL:      modelBaseURL + "ggml-large-v2.bin",
	},
	"large-v3": {
		Name:     "large-v3",
		FileName: "ggml-large-v3.bin",
		URL:      modelBaseURL + "ggml-large-v3.bin",
		SHA256:   "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	},
	"large": {
		Name:     "large",
		FileName: "ggml-large-v3.bin",
		URL:      modelBaseURL + "ggml-large-v3.bin",
		SHA256:   "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	},
}

func ModelNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LookupModel(name string) (Model, bool) {
	model, ok := catalog[strings.TrimSpace(name)]
	return model, ok
}

// ResolveModel maps a requested model name to a catalog entry. Unknown or
// empty names fall back to DefaultModel; the second result reports whether
// a fallback happened, so callers can log it.
func ResolveModel(requested string) (Model, bool) {
	trimmed := strings.TrimSpace(requested)
	if trimmed == "" {
		return catalog[DefaultModel], false
	}

	if model, ok := catalog[trimmed]; ok {
		return model, false
	}

	return catalog[DefaultModel], true
}
