package theme

import (
	"fmt"
	"io"
)

// Banner returns the CLI banner shown by help and init.
func Banner() string {
	const cyan = "\033[36m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	return "" +
		cyan + "  ┌─┐┌─┐┌─┐┬┌─┐┬  ┌─┐┌─┐┌─┐┌┬┐\n" + reset +
		cyan + "  └─┐│ ││  │├─┤│  ├┤ ├┤ ├┤  ││\n" + reset +
		cyan + "  └─┘└─┘└─┘┴┴ ┴┴─┘└  └─┘└─┘─┴┘\n" + reset +
		yellow + "  ──────────────────────────────\n" + reset +
		"  upstream mentions → author timelines → one feed\n"
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner())
}
