package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"telegram-gpt-bot/internal/domain/model"
)

//go:embed locales
var LocalesFS embed.FS

// Translator resolves message keys for a single language.
type Translator struct {
	translations map[string]string
}

func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("read translation file %s: %w", filePath, err)
	}

	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("parse translation file %s: %w", filePath, err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the formatted message for key, or the key itself when missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Bundle holds one Translator per supported language and picks by account
// language, falling back to Russian (the registration default).
type Bundle struct {
	byLang map[model.Language]*Translator
}

func NewBundle(fsys fs.FS, langs ...model.Language) (*Bundle, error) {
	if len(langs) == 0 {
		langs = []model.Language{model.LanguageRU, model.LanguageEN}
	}
	b := &Bundle{byLang: make(map[model.Language]*Translator, len(langs))}
	for _, l := range langs {
		tr, err := NewTranslator(fsys, string(l))
		if err != nil {
			return nil, err
		}
		b.byLang[l] = tr
	}
	return b, nil
}

func (b *Bundle) For(lang model.Language) *Translator {
	if tr, ok := b.byLang[lang]; ok {
		return tr
	}
	return b.byLang[model.LanguageRU]
}

func (b *Bundle) T(lang model.Language, key string, args ...interface{}) string {
	return b.For(lang).T(key, args...)
}
