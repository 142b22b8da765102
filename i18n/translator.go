package i18n

// Translator retrieves localized messages for issue codes.
// data provides optional metadata to embed in the message (for example,
// "field" or "struct").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var messages = map[string]map[string]string{
	"en": {
		"invalid_type":      "invalid type",
		"required":          "required field not set",
		"unknown_key":       "unknown field",
		"duplicate_key":     "duplicate key",
		"duplicate_field":   "duplicate field",
		"duplicate_element": "duplicate set element",
		"field_merge":       "conflicting field definitions",
		"too_small":         "too small",
		"too_big":           "too big",
		"too_short":         "too short",
		"too_long":          "too long",
		"pattern":           "does not match pattern",
		"invalid_enum":      "not an enum member",
		"invalid_format":    "invalid format",
		"union_ambiguous":   "more than one union field set",
		"parse_error":       "parse error",
		"overflow":          "number out of range",
		"truncated":         "truncated",
		"invalid":           "invalid value",
		"unsupported":       "unsupported value",
		"protocol_error":    "malformed input",
	},
	"ja": {
		"invalid_type":      "型が不正です",
		"required":          "必須フィールドが設定されていません",
		"unknown_key":       "未知のフィールドです",
		"duplicate_key":     "キーが重複しています",
		"duplicate_field":   "フィールドが重複しています",
		"duplicate_element": "セットの要素が重複しています",
		"field_merge":       "フィールド定義が衝突しています",
		"too_small":         "小さすぎます",
		"too_big":           "大きすぎます",
		"too_short":         "短すぎます",
		"too_long":          "長すぎます",
		"pattern":           "パターンに一致しません",
		"invalid_enum":      "列挙値ではありません",
		"invalid_format":    "形式が不正です",
		"union_ambiguous":   "ユニオンに複数のフィールドが設定されています",
		"parse_error":       "解析エラー",
		"overflow":          "数値が範囲外です",
		"truncated":         "打ち切られました",
		"invalid":           "値が不正です",
		"unsupported":       "サポートされていない値です",
		"protocol_error":    "入力が壊れています",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	if msg, ok := messages[t.lang][code]; ok {
		return msg
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
