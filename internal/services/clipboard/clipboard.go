// Package clipboard copies bot replies to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned when the host has no clipboard utility.
var ErrUnavailable = errors.New("system clipboard is unavailable")

// Copier copies reply text somewhere the user can paste it from.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier on top of github.com/atotto/clipboard.
type Service struct {
	write       func(string) error
	unsupported bool
}

func NewService() *Service {
	return &Service{write: clipboard.WriteAll, unsupported: clipboard.Unsupported}
}

// Copy writes text to the clipboard. Empty text is a no-op.
func (service *Service) Copy(text string) error {
	if text == "" {
		return nil
	}
	if service.unsupported {
		return ErrUnavailable
	}
	if err := service.write(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

var _ Copier = (*Service)(nil)
