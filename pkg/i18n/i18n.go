package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// Key identifies a user-visible text.
type Key string

const (
	KeyLoadingSDK           Key = "loading_sdk"
	KeyPreparingCamera      Key = "preparing_camera"
	KeyPointCamera          Key = "point_camera"
	KeyCameraReady          Key = "camera_ready"
	KeyUploadImage          Key = "upload_image"
	KeyDecoding             Key = "decoding"
	KeyProcessingImage      Key = "processing_image"
	KeyUploadInstruction    Key = "upload_instruction"
	KeyNoBarcodeFound       Key = "no_barcode_found"
	KeySelectImageFile      Key = "select_image_file"
	KeySDKNotLoaded         Key = "sdk_not_loaded"
	KeyScanningContinuously Key = "scanning_continuously"
	KeyScanCompleted        Key = "scan_completed"
	KeyStartAgain           Key = "start_again"
	KeyReloadRequired       Key = "reload_required"
	KeyReloadAction         Key = "reload_action"
)

// Keys returns every known key, sorted.
func Keys() []Key {
	keys := []Key{
		KeyLoadingSDK, KeyPreparingCamera, KeyPointCamera, KeyCameraReady,
		KeyUploadImage, KeyDecoding, KeyProcessingImage, KeyUploadInstruction,
		KeyNoBarcodeFound, KeySelectImageFile, KeySDKNotLoaded,
		KeyScanningContinuously, KeyScanCompleted, KeyStartAgain,
		KeyReloadRequired, KeyReloadAction,
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// BaseLocale is the fallback locale. Every catalog set must define it.
var BaseLocale = language.English

// legacyNames maps the names used by older host configurations.
var legacyNames = map[string]language.Tag{
	"english": language.English,
	"chinese": language.Chinese,
}

type catalogFile struct {
	Locale   string            `toml:"locale"`
	Messages map[string]string `toml:"messages"`
}

// Catalog holds the messages of every supported locale.
type Catalog struct {
	tags     []language.Tag
	matcher  language.Matcher
	messages map[string]map[Key]string
}

//go:embed locales/*.toml
var embeddedFS embed.FS

var defaultCatalog = mustLoadEmbedded()

func mustLoadEmbedded() *Catalog {
	c, err := Load(embeddedFS)
	if err != nil {
		panic(fmt.Sprintf("i18n: load embedded catalogs: %v", err))
	}
	return c
}

// Default returns the catalog built from the embedded locales.
func Default() *Catalog {
	return defaultCatalog
}

// Load reads locales/*.toml from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.toml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	c := &Catalog{messages: map[string]map[Key]string{}}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: locale %q: %w", path, file.Locale, err)
		}
		if _, exists := c.messages[tag.String()]; exists {
			return nil, fmt.Errorf("catalog %s: locale %s already defined", path, tag)
		}

		msgs := make(map[Key]string, len(file.Messages))
		for k, v := range file.Messages {
			msgs[Key(strings.TrimSpace(k))] = v
		}
		c.messages[tag.String()] = msgs
		c.tags = append(c.tags, tag)
	}

	if _, ok := c.messages[BaseLocale.String()]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	// The base locale goes first so that it wins when nothing matches.
	base := BaseLocale.String()
	sort.SliceStable(c.tags, func(i, j int) bool {
		return c.tags[i].String() == base && c.tags[j].String() != base
	})
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Locales returns the supported locale tags, base locale first.
func (c *Catalog) Locales() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Resolve maps a configured language name to a supported locale.
func (c *Catalog) Resolve(name string) language.Tag {
	name = strings.TrimSpace(name)
	if name == "" {
		return BaseLocale
	}
	if tag, ok := legacyNames[strings.ToLower(name)]; ok {
		name = tag.String()
	}
	tag, err := language.Parse(name)
	if err != nil {
		return BaseLocale
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return BaseLocale
	}
	return c.tags[idx]
}

// Translator returns texts for one language. overrides replace catalog
// entries per key; empty override values are ignored.
func (c *Catalog) Translator(lang string, overrides map[Key]string) *Translator {
	t := &Translator{
		tag:       c.Resolve(lang),
		catalog:   c,
		overrides: map[Key]string{},
	}
	for k, v := range overrides {
		if v != "" {
			t.overrides[k] = v
		}
	}
	return t
}

// Translator looks up texts for a resolved locale.
type Translator struct {
	tag       language.Tag
	catalog   *Catalog
	overrides map[Key]string
}

// Locale returns the resolved locale.
func (t *Translator) Locale() language.Tag {
	return t.tag
}

// Text returns the text for key. Lookup order: host override, resolved
// locale, base locale, then the key itself.
func (t *Translator) Text(key Key) string {
	if v, ok := t.overrides[key]; ok {
		return v
	}
	if v, ok := t.catalog.messages[t.tag.String()][key]; ok && v != "" {
		return v
	}
	if v, ok := t.catalog.messages[BaseLocale.String()][key]; ok && v != "" {
		return v
	}
	return string(key)
}
