package shared

import (
	"errors"
	"fmt"

	"github.com/kasirku/kasirku/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = httpx.ErrNotFound
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates signup with an existing email.
	ErrEmailTaken = fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = httpx.ErrForbidden
)

// UserSafeMessage returns a message that can be shown to end users.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Data tidak ditemukan"
	case errors.Is(err, ErrInvalidCredentials):
		return "Email atau password tidak valid"
	case errors.Is(err, ErrEmailTaken):
		return "Email sudah terdaftar"
	case errors.Is(err, ErrForbidden):
		return "Anda tidak memiliki akses"
	default:
		return "Terjadi kesalahan, silakan coba lagi"
	}
}
