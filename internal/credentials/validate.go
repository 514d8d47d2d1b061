package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const tagEmailShape = "email_shape"

// Rule は1つの入力欄に対する制約です。Tag は validator のタグ表記です。
type Rule struct {
	Name    string
	Field   Field
	Kind    Kind
	Tag     string
	Message string
}

var rules = []Rule{
	{
		Name:    "identifier_email",
		Field:   FieldIdentifier,
		Kind:    KindInvalidFormat,
		Tag:     tagEmailShape,
		Message: "Please enter a valid email address.",
	},
	{
		Name:    "secret_min_length",
		Field:   FieldSecret,
		Kind:    KindTooShort,
		Tag:     "min=" + strconv.Itoa(MinSecretLength),
		Message: "Password must be at least 6 characters long.",
	},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(tagEmailShape, func(fl validator.FieldLevel) bool {
		return IsEmailShape(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Rules は宣言済みルールのコピーを返します。
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Validate は全入力欄を検証します。副作用はなく、同じ入力には同じ結果を返します。
func Validate(c Credentials) FieldErrors {
	errs := FieldErrors{}
	for _, rule := range rules {
		if errs.Has(rule.Field) {
			continue
		}
		if e, failed := check(rule, c.Value(rule.Field)); failed {
			errs[rule.Field] = e
		}
	}
	return errs
}

// ValidateField は1つの入力欄だけを検証します。入力のたびに古いエラーを消すために使います。
func ValidateField(c Credentials, field Field) FieldErrors {
	errs := FieldErrors{}
	for _, rule := range rules {
		if rule.Field != field {
			continue
		}
		if e, failed := check(rule, c.Value(field)); failed {
			errs[field] = e
			break
		}
	}
	return errs
}

func check(rule Rule, value string) (FieldError, bool) {
	if err := validate.Var(value, rule.Tag); err != nil {
		return FieldError{Field: rule.Field, Kind: rule.Kind, Message: rule.Message}, true
	}
	return FieldError{}, false
}

// IsEmailShape は local@domain.tld 形式かどうかを判定します。
// 空白を含まず、@ がちょうど1つ、ドメインは空でないラベル2つ以上で構成されます。
func IsEmailShape(s string) bool {
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" {
			return false
		}
	}
	return true
}

// MaskIdentifier はログや監査記録用にメールアドレスのローカル部を伏せます。
func MaskIdentifier(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok {
		if s == "" {
			return ""
		}
		return "***"
	}
	runes := []rune(local)
	if len(runes) == 0 {
		return "***@" + domain
	}
	return string(runes[0]) + "***@" + domain
}

// OwnerDigest は試行記録の持ち主を照合するための識別子のダイジェストです。
// 大文字小文字と前後の空白は区別しません。
func OwnerDigest(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}
