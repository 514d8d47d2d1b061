package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yourusername/signin/internal/credentials"
	"github.com/yourusername/signin/internal/signin"
)

// terminalEffects は遷移要求と通知を端末に表示します。
type terminalEffects struct {
	w io.Writer
}

func (e terminalEffects) Navigate(path string) {
	fmt.Fprintf(e.w, "Continue at %s\n", path)
}

func (e terminalEffects) Show(n signin.Notification) {
	if n.Variant == signin.VariantDestructive {
		fmt.Fprintf(e.w, "✗ %s: %s\n", n.Title, n.Message)
		return
	}
	fmt.Fprintf(e.w, "✓ %s: %s\n", n.Title, n.Message)
}

// run はサインインが成功するか、利用者が再試行をやめるまで入力と送信を繰り返します。
func run(ctx context.Context, p prompter, form *signin.Form, w io.Writer) (*signin.Session, error) {
	for {
		email, err := p.Input(ctx, "Email", form.Identifier(), credentials.FieldIdentifier)
		if err != nil {
			return nil, err
		}
		if _, err := form.Change(credentials.FieldIdentifier, email); err != nil {
			return nil, err
		}
		password, err := p.Password(ctx, "Password", credentials.FieldSecret)
		if err != nil {
			return nil, err
		}
		if _, err := form.Change(credentials.FieldSecret, password); err != nil {
			return nil, err
		}

		out, err := form.Submit(ctx)
		if err == nil {
			return out.Session, nil
		}
		switch {
		case errors.Is(err, signin.ErrValidation):
			for _, fe := range out.Errors.Sorted() {
				fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Message)
			}
			continue
		case errors.Is(err, signin.ErrAuthenticationFailed):
			again, cerr := p.Confirm(ctx, "Try again?", true)
			if cerr != nil {
				return nil, cerr
			}
			if !again {
				return nil, err
			}
		default:
			return nil, err
		}
	}
}
