package manifest

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"inferd/pkg/types"
)

// classRule maps a filename pattern to the capability tags and description
// it implies. Rules are evaluated in order: tags from every matching rule are
// unioned, the description comes from the first match.
type classRule struct {
	pattern     *regexp.Regexp
	tags        []string
	description string
}

// baseTags are attached to every descriptor regardless of matches.
var baseTags = []string{"neural", "local"}

const genericDescription = "General-purpose neural architecture with balanced cognitive capabilities"

var classRules = []classRule{
	{
		pattern:     regexp.MustCompile(`phi|reasoning|logic|math`),
		tags:        []string{"reasoning", "logic", "analytical"},
		description: "Logic-oriented neural architecture with enhanced reasoning pathways",
	},
	{
		pattern:     regexp.MustCompile(`code|programming|dev`),
		tags:        []string{"code", "technical", "structured"},
		description: "Code-specialized cognitive model with technical reasoning patterns",
	},
	{
		pattern:     regexp.MustCompile(`chat|instruct|dolphin|assistant`),
		tags:        []string{"conversational", "adaptive", "empathetic"},
		description: "Conversational AI with strong instruction-following behavioral patterns",
	},
	{
		pattern:     regexp.MustCompile(`creative|art|story|write`),
		tags:        []string{"creative", "imaginative", "expressive"},
		description: "Creative neural architecture optimized for artistic expression",
	},
	{
		pattern:     regexp.MustCompile(`tiny|mini|small|1b|2b`),
		tags:        []string{"efficient", "compact", "responsive"},
		description: "Compact neural architecture optimized for speed and efficiency",
	},
	{
		pattern:     regexp.MustCompile(`large|big|13b|30b|70b`),
		tags:        []string{"comprehensive", "knowledgeable", "versatile"},
		description: "Large-scale neural architecture with extensive knowledge patterns",
	},
}

var (
	reExtension  = regexp.MustCompile(`(?i)\.(gguf|bin|safetensors)$`)
	reQuantBlock = regexp.MustCompile(`(?i)\.q\d+_\w+`)
	reSizeSuffix = regexp.MustCompile(`-\d+b(-|$)`)
	reQuantDash  = regexp.MustCompile(`(?i)-(q\d+|fp\d+)(-|$)`)
	reSeparators = regexp.MustCompile(`[-_.]+`)
)

// cleanName derives a display name from a model filename: extension,
// quantization markers and size suffixes stripped, separators normalized.
func cleanName(filename string) string {
	name := strings.ToLower(filepath.Base(filename))
	name = reExtension.ReplaceAllString(name, "")
	name = reQuantBlock.ReplaceAllString(name, "")
	name = reSizeSuffix.ReplaceAllString(name, "$1")
	name = reQuantDash.ReplaceAllString(name, "$2")
	name = reSeparators.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// stemName derives a name that keeps the size and quantization markers
// cleanName strips. Used when cleaned names collide across files.
func stemName(filename string) string {
	name := strings.ToLower(filepath.Base(filename))
	name = reExtension.ReplaceAllString(name, "")
	name = reSeparators.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// Classify builds a descriptor for a discovered model file.
func Classify(filename string) types.ModelDescriptor {
	name := cleanName(filename)

	tags := make(map[string]struct{}, len(baseTags)+4)
	for _, t := range baseTags {
		tags[t] = struct{}{}
	}
	description := ""
	for _, rule := range classRules {
		if !rule.pattern.MatchString(name) {
			continue
		}
		for _, t := range rule.tags {
			tags[t] = struct{}{}
		}
		if description == "" {
			description = rule.description
		}
	}
	if description == "" {
		description = genericDescription
	}

	sorted := make([]string, 0, len(tags))
	for t := range tags {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	return types.ModelDescriptor{
		Name:        name,
		File:        filepath.Base(filename),
		Description: description,
		Tags:        sorted,
	}
}
