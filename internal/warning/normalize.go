package warning

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/tripplanner/internal/model"
)

// isoLayout はJavaScriptのtoISOStringと同じミリ秒精度のUTC表現。
const isoLayout = "2006-01-02T15:04:05.000Z"

// epochMillisThreshold 未満の数値はエポック秒として扱う。
const epochMillisThreshold = 1e12

// Sanitizer は警告本文のHTMLを無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	PlainText(rawHTML string) string
}

// NormalizeTimestamp はエポック秒またはミリ秒をISO 8601文字列に変換する。
// 数値でない値、0以下、非有限値はそのまま返す。
func NormalizeTimestamp(v model.FlexValue) model.FlexValue {
	if v == "" {
		return v
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) || n <= 0 {
		return v
	}
	if n < epochMillisThreshold {
		n *= 1000
	}
	return model.FlexValue(time.UnixMilli(int64(n)).UTC().Format(isoLayout))
}

// Normalize は表示用に渡航警告を正規化したコピーを返す。
// 日時をISO 8601に揃え、警告レベルと状況説明を代替フィールドで補完する。
func Normalize(w model.Warning, sanitizer Sanitizer) model.Warning {
	w.LastModified = NormalizeTimestamp(w.LastModified)
	w.Effective = NormalizeTimestamp(w.Effective)

	if sanitizer != nil {
		w.Title = sanitizer.PlainText(w.Title)
		w.Summary = sanitizer.PlainText(w.Summary)
		w.Situation = sanitizer.Sanitize(w.Situation)
	}

	if w.WarningLevel == "" {
		w.WarningLevel = firstNonEmpty(w.Severity, w.SeverityDisplay, w.Level)
	}

	if w.Situation == "" {
		switch {
		case w.Summary != "":
			w.Situation = w.Summary
		case w.Title != "":
			w.Situation = w.Title
		case w.CountryName != "":
			w.Situation = "Travel advisory for " + w.CountryName
		default:
			w.Situation = "No situation details provided"
		}
	}
	return w
}

// NormalizeDetailed は詳細警告の本体とカテゴリ別本文を正規化する。
func NormalizeDetailed(d model.DetailedWarning, sanitizer Sanitizer) model.DetailedWarning {
	if d.Warning != nil {
		w := Normalize(*d.Warning, sanitizer)
		d.Warning = &w
	}
	if sanitizer != nil && d.CategorizedContent != nil {
		content := make(map[string][]string, len(d.CategorizedContent))
		for category, paragraphs := range d.CategorizedContent {
			cleaned := make([]string, 0, len(paragraphs))
			for _, p := range paragraphs {
				cleaned = append(cleaned, sanitizer.Sanitize(p))
			}
			content[category] = cleaned
		}
		d.CategorizedContent = content
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
