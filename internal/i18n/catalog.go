package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/cs"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"gopkg.in/yaml.v3"
)

// Message keys used by the timeline renderer.
const (
	KeyTitleModified      = "title.modified"
	KeyPropertiesModified = "properties.modified"
	KeyPropertiesRelated  = "properties.modified_related"
	KeyCompareNotEquals   = "properties.compare.not_equals"
	KeyNewValues          = "properties.new_values"
	KeyModalHeading       = "modal.heading"
	KeyModalDescription   = "modal.description"
	KeyModalEmpty         = "modal.empty"
	eventKeyPrefix        = "events."
)

//go:embed lang/*/*.yaml
var bundled embed.FS

// Catalog holds the translators of every supported locale.
type Catalog struct {
	uni      *ut.UniversalTranslator
	fallback string
	locales  []string
}

// Translator renders messages for one locale. Unknown keys render as the key
// itself.
type Translator struct {
	trans ut.Translator
}

// Load builds a catalog from the bundled message files.
func Load(fallback string) (*Catalog, error) {
	return LoadFS(bundled, "lang", fallback)
}

// LoadFS builds a catalog from <root>/<locale>/*.yaml files in fsys.
func LoadFS(fsys fs.FS, root, fallback string) (*Catalog, error) {
	supported := map[string]locales.Translator{
		"en": en.New(),
		"cs": cs.New(),
	}

	fallbackLocale, ok := supported[strings.ToLower(fallback)]
	if !ok {
		return nil, fmt.Errorf("unsupported fallback locale %q", fallback)
	}

	uni := ut.New(fallbackLocale, en.New(), cs.New())

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read message directory: %w", err)
	}

	loaded := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		locale := entry.Name()
		trans, found := uni.GetTranslator(locale)
		if !found {
			continue
		}

		files, err := fs.Glob(fsys, path.Join(root, locale, "*.yaml"))
		if err != nil {
			return nil, fmt.Errorf("list %s messages: %w", locale, err)
		}
		for _, file := range files {
			if err := addFile(fsys, file, trans); err != nil {
				return nil, err
			}
		}
		loaded = append(loaded, locale)
	}

	if err := uni.VerifyTranslations(); err != nil {
		return nil, fmt.Errorf("verify translations: %w", err)
	}

	sort.Strings(loaded)

	return &Catalog{uni: uni, fallback: fallbackLocale.Locale(), locales: loaded}, nil
}

// Locales lists the locales with loaded messages.
func (c *Catalog) Locales() []string {
	return append([]string(nil), c.locales...)
}

// Supports reports whether messages exist for the locale.
func (c *Catalog) Supports(locale string) bool {
	locale = strings.ToLower(strings.TrimSpace(locale))
	for _, known := range c.locales {
		if known == locale {
			return true
		}
	}
	return false
}

// Translator returns the translator for locale, falling back to the catalog
// default.
func (c *Catalog) Translator(locale string) Translator {
	locale = strings.ToLower(strings.TrimSpace(locale))
	trans, _ := c.uni.FindTranslator(locale, c.fallback)
	return Translator{trans: trans}
}

// Locale returns the locale served by the translator.
func (t Translator) Locale() string {
	return t.trans.Locale()
}

// Text renders the message stored under key.
func (t Translator) Text(key string, params ...string) string {
	text, err := t.trans.T(key, params...)
	if err != nil {
		return key
	}
	return text
}

// Event renders the verb for created, updated and deleted events. Other event
// names are returned unchanged.
func (t Translator) Event(event string) string {
	switch event {
	case "created", "updated", "deleted":
		return t.Text(eventKeyPrefix+event)
	default:
		return event
	}
}

func addFile(fsys fs.FS, file string, trans ut.Translator) error {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	var document map[string]interface{}
	if err := yaml.Unmarshal(data, &document); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	messages := make(map[string]string)
	flatten("", document, messages)
	for key, text := range messages {
		if err := trans.Add(key, text, true); err != nil {
			return fmt.Errorf("add %s message %q: %w", trans.Locale(), key, err)
		}
	}
	return nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]interface{}:
			flatten(full, v, out)
		case string:
			out[full] = v
		case nil:
		default:
			out[full] = fmt.Sprintf("%v", v)
		}
	}
}
