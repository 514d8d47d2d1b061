package auth

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Account はログイン可能なアカウントです。
type Account struct {
	UserID       string `yaml:"id"`
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// Accounts はメールアドレス（小文字）からアカウントを引く表です。
type Accounts map[string]Account

// Lookup はメールアドレスに対応するアカウントを返します。大文字小文字は区別しません。
func (a Accounts) Lookup(email string) (Account, bool) {
	acc, ok := a[normalizeEmail(email)]
	return acc, ok
}

// Add はアカウントを追加します。
func (a Accounts) Add(acc Account) error {
	key := normalizeEmail(acc.Email)
	if key == "" {
		return fmt.Errorf("account email is empty")
	}
	if acc.PasswordHash == "" {
		return fmt.Errorf("account %s has no password_hash", acc.Email)
	}
	if _, exists := a[key]; exists {
		return fmt.Errorf("duplicate account %s", acc.Email)
	}
	if acc.UserID == "" {
		acc.UserID = key
	}
	a[key] = acc
	return nil
}

// ParseAccounts は YAML 形式のアカウント定義を読み込みます。
//
//	accounts:
//	  - id: u-1
//	    email: user@example.com
//	    password_hash: $2a$10$...
func ParseAccounts(data []byte) (Accounts, error) {
	var file accountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse accounts: %w", err)
	}
	out := make(Accounts, len(file.Accounts))
	for _, acc := range file.Accounts {
		if err := out.Add(acc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadAccounts は path の YAML ファイルからアカウントを読み込みます。
func LoadAccounts(path string) (Accounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	return ParseAccounts(data)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
