package extraction

import (
	"path"
	"strings"
)

// Language identifies a supported source language.
type Language string

const (
	Python     Language = "python"
	CSharp     Language = "csharp"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
)

// AllLanguages lists the supported languages in a stable order.
var AllLanguages = []Language{Python, CSharp, JavaScript, TypeScript}

var languageByExt = map[string]Language{
	".py":  Python,
	".pyi": Python,
	".cs":  CSharp,
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".ts":  TypeScript,
	".tsx": TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
}

// LanguageForPath detects the language from a file extension.
func LanguageForPath(p string) (Language, bool) {
	lang, ok := languageByExt[strings.ToLower(path.Ext(p))]
	return lang, ok
}

// ParseLanguage converts a user-supplied name into a Language.
// Accepts a few common aliases ("c#", "cs", "js", "ts", "py").
func ParseLanguage(name string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "python", "py":
		return Python, true
	case "csharp", "c#", "cs":
		return CSharp, true
	case "javascript", "js":
		return JavaScript, true
	case "typescript", "ts":
		return TypeScript, true
	}
	return "", false
}

// Family groups languages whose files can see each other's declarations.
// JavaScript and TypeScript import each other freely.
func (l Language) Family() string {
	switch l {
	case JavaScript, TypeScript:
		return "ecmascript"
	}
	return string(l)
}
