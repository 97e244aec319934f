package extract

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Unlock writes a decrypted copy of the PDF at in to out.
func Unlock(in, out, password string) error {
	if err := api.DecryptFile(in, out, newConfiguration(password)); err != nil {
		return fmt.Errorf("%w: decrypt %s: %w", ErrDocumentUnreadable, in, err)
	}
	return nil
}
