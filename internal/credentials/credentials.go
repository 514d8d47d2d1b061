// Package credentials はサインインフォームの入力値と、その検証ルールを提供します。
package credentials

import (
	"fmt"
	"sort"
)

// Field はフォーム上の入力欄の名前です。
type Field string

const (
	FieldIdentifier Field = "email"
	FieldSecret     Field = "password"
)

// Kind は検証エラーの種類です。
type Kind string

const (
	KindInvalidFormat Kind = "invalid_format"
	KindTooShort      Kind = "too_short"
)

// MinSecretLength はパスワードの最小文字数（バイト数ではなく文字数）です。
const MinSecretLength = 6

// Credentials はフォームに入力された識別子（メールアドレス）とパスワードです。
type Credentials struct {
	Identifier string `json:"email" form:"email"`
	Secret     string `json:"password" form:"password"`
}

// Value は指定された入力欄の値を返します。
func (c Credentials) Value(field Field) string {
	switch field {
	case FieldIdentifier:
		return c.Identifier
	case FieldSecret:
		return c.Secret
	default:
		return ""
	}
}

// With は指定された入力欄を value に置き換えたコピーを返します。
func (c Credentials) With(field Field, value string) (Credentials, error) {
	switch field {
	case FieldIdentifier:
		c.Identifier = value
	case FieldSecret:
		c.Secret = value
	default:
		return c, fmt.Errorf("unknown field %q", field)
	}
	return c, nil
}

// String はログ出力用の表現です。パスワードは出力しません。
func (c Credentials) String() string {
	return fmt.Sprintf("{email:%s password:[redacted]}", MaskIdentifier(c.Identifier))
}

// ParseField は外部から受け取った入力欄名を Field に変換します。
func ParseField(name string) (Field, bool) {
	switch Field(name) {
	case FieldIdentifier, FieldSecret:
		return Field(name), true
	default:
		return "", false
	}
}

// FieldError は1つの入力欄に対する検証エラーです。
type FieldError struct {
	Field   Field  `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors は入力欄ごとのエラーです。空であれば全欄が有効です。
type FieldErrors map[Field]FieldError

// Empty はエラーが1件もないかどうかを返します。
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Has は指定した入力欄にエラーがあるかを返します。
func (fe FieldErrors) Has(field Field) bool {
	_, ok := fe[field]
	return ok
}

// Messages は JSON レスポンス用に入力欄名とメッセージの組を返します。
func (fe FieldErrors) Messages() map[string]string {
	out := make(map[string]string, len(fe))
	for field, e := range fe {
		out[string(field)] = e.Message
	}
	return out
}

// Merge は field の結果だけを next で置き換えたコピーを返します。
func (fe FieldErrors) Merge(field Field, next FieldErrors) FieldErrors {
	out := make(FieldErrors, len(fe)+1)
	for f, e := range fe {
		if f != field {
			out[f] = e
		}
	}
	if e, ok := next[field]; ok {
		out[field] = e
	}
	return out
}

// Sorted は入力欄名でソートしたエラー一覧を返します。
func (fe FieldErrors) Sorted() []FieldError {
	out := make([]FieldError, 0, len(fe))
	for _, e := range fe {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
