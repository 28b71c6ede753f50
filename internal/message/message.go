// Package message prints operator-facing diagnostics. Developer logs go
// through slog (see internal/logs); everything a user is expected to read and
// act on goes through here.
package message

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/praetorian-inc/auditgraph/version"
)

var (
	quiet     bool
	noColor   = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	mutex     sync.RWMutex
	outWriter io.Writer = os.Stdout

	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	detailColor  = color.New(color.FgHiBlack)
	sectionColor = color.New(color.FgHiMagenta, color.Bold)
)

const asciiBanner = `
 __   _  _  ____  __  ____  ___  ____   __   ____  _  _
/ _\ / )( \(    \(  )(_  _)/ __)(  _ \ / _\ (  _ \/ )( \
/    \) \/ ( ) D ( )(   )( ( (_ \ )   //    \ ) __/) __ (
\_/\_/\____/(____/(__) (__) \___/(__\_)\_/\_/(__)  \_)(_/
`

const rule = "============================================================"

// SetQuiet hides progress output. Problems and the details and steps that
// explain them are still printed.
func SetQuiet(q bool) {
	mutex.Lock()
	defer mutex.Unlock()
	quiet = q
}

// SetNoColor enables/disables colored output
func SetNoColor(nc bool) {
	mutex.Lock()
	defer mutex.Unlock()
	noColor = nc
	color.NoColor = nc
}

// SetOutput changes the output writer (useful for testing)
func SetOutput(w io.Writer) {
	mutex.Lock()
	defer mutex.Unlock()
	outWriter = w
}

// Writer returns the current output writer so callers can render tables to
// the same destination as the rest of the diagnostics.
func Writer() io.Writer {
	mutex.RLock()
	defer mutex.RUnlock()
	return outWriter
}

func printf(c *color.Color, prefix, format string, args ...interface{}) {
	mutex.RLock()
	defer mutex.RUnlock()

	msg := fmt.Sprintf(format, args...)
	if noColor {
		fmt.Fprintf(outWriter, "%s%s\n", prefix, msg)
	} else {
		c.Fprintf(outWriter, "%s%s\n", prefix, msg)
	}
}

func isQuiet() bool {
	mutex.RLock()
	defer mutex.RUnlock()
	return quiet
}

// Info prints an informational message unless quiet mode is enabled
func Info(format string, args ...interface{}) {
	if isQuiet() {
		return
	}
	printf(infoColor, "[*] ", format, args...)
}

// Success prints a success message unless quiet mode is enabled
func Success(format string, args ...interface{}) {
	if isQuiet() {
		return
	}
	printf(successColor, "[+] ", format, args...)
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	printf(warningColor, "[!] ", format, args...)
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	printf(errorColor, "[-] ", format, args...)
}

// Critical prints a critical error message that is never suppressed
func Critical(format string, args ...interface{}) {
	printf(errorColor, "[!!] ", format, args...)
}

// Detail prints an indented continuation line for the previous message.
// Remediation hints are printed as details so they survive quiet mode.
func Detail(format string, args ...interface{}) {
	printf(detailColor, "    ", format, args...)
}

// Emphasize returns a string with bold formatting
func Emphasize(s string) string {
	mutex.RLock()
	defer mutex.RUnlock()
	if noColor {
		return s
	}
	return color.New(color.Bold).Sprint(s)
}

// Section prints a section header
func Section(format string, args ...interface{}) {
	if isQuiet() {
		return
	}

	mutex.RLock()
	defer mutex.RUnlock()

	msg := fmt.Sprintf(format, args...)
	if noColor {
		fmt.Fprintf(outWriter, "\n%s\n%s\n", rule, msg)
	} else {
		sectionColor.Fprintf(outWriter, "\n%s\n%s\n", rule, msg)
	}
}

// Steps prints a numbered list, e.g. remediation instructions. Like Detail it
// is printed in quiet mode.
func Steps(title string, steps ...string) {
	mutex.RLock()
	defer mutex.RUnlock()

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "%s\n", title)
	}
	for i, s := range steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	fmt.Fprint(outWriter, b.String())
}

// Banner prints the banner
func Banner() {
	if isQuiet() {
		return
	}

	mutex.RLock()
	defer mutex.RUnlock()

	if noColor {
		fmt.Fprint(outWriter, asciiBanner, version.AbbreviatedVersion(), "\n")
	} else {
		sectionColor.Fprint(outWriter, asciiBanner, version.AbbreviatedVersion(), "\n")
	}
}
