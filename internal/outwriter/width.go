package outwriter

import (
	"os"

	"github.com/huangsam/rosmap/internal/contract"
	"golang.org/x/term"
)

// GetMaxTableURLWidth calculates the maximum width for URLs in table output
// based on terminal width.
func GetMaxTableURLWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth <= 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detected
		}
	}

	// Ten numeric and flag columns with borders and padding
	available := termWidth - 95
	if available < 20 {
		return 20
	}
	if available > 80 {
		return 80
	}
	return available
}
