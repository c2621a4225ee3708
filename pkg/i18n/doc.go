// Package i18n provides the user-visible texts of a scanner instance.
//
// Catalogs for English and Chinese are embedded. A language is selected by
// BCP 47 tag ("en-US", "zh-Hans") or by the legacy names "english" and
// "chinese". Unknown languages and missing keys fall back to English, and a
// host can override any key.
//
// # Usage
//
//	tr := i18n.Default().Translator("chinese", nil)
//	status := tr.Text(i18n.KeyLoadingSDK) // 正在加载SDK...
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package i18n
