package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// Environment variables holding the global configuration. They default the
// global flags, and are passed to extensions.
const (
	EnvRatesFile = "ESPP_RATES_FILE"
	EnvCurrency  = "ESPP_CURRENCY"
	EnvLogLevel  = "ESPP_LOG_LEVEL"
	EnvCache     = "ESPP_CACHE"
	EnvVerbose   = "ESPP_VERBOSE"

	EnvLongTerm           = "ESPP_LONG_TERM"
	EnvQualifyingOffer    = "ESPP_QUALIFYING_OFFER"
	EnvQualifyingPurchase = "ESPP_QUALIFYING_PURCHASE"
	EnvTieBreak           = "ESPP_TIE_BREAK"
)

// ExtensionPrefix prefixes the name of external subcommands. Broker importers
// are usually provided this way: espp2-<broker> turning an export into
// transactions.
const ExtensionPrefix = "espp2-"

// RunExtension attempts to find and execute an external espp2-<subcommand> binary.
// It returns (true, exitCode) if an extension was found and executed,
// and (false, 0) if no extension was found or executed.
func RunExtension(subcommand string, args []string) (bool, int) {
	externalCmdName := ExtensionPrefix + subcommand

	// Look for the external command in PATH
	lp, err := exec.LookPath(externalCmdName)
	if err != nil {
		// Command not found in PATH
		logger().Debug("external command not found in PATH", "command", externalCmdName, "error", err)
		return false, 0
	}

	// Found external command, execute it
	cmd := exec.Command(lp, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Pass global flags as environment variables
	cmd.Env = os.Environ() // Start with existing environment variables
	cmd.Env = append(cmd.Env, EnvRatesFile+"="+*ratesFile)
	cmd.Env = append(cmd.Env, EnvCurrency+"="+*currency)
	cmd.Env = append(cmd.Env, EnvLogLevel+"="+*logLevel)
	cmd.Env = append(cmd.Env, EnvCache+"="+*cacheDir)
	cmd.Env = append(cmd.Env, EnvVerbose+"="+strconv.FormatBool(*Verbose))
	cmd.Env = append(cmd.Env, EnvLongTerm+"="+*longTerm)
	cmd.Env = append(cmd.Env, EnvQualifyingOffer+"="+*qualifyingOffer)
	cmd.Env = append(cmd.Env, EnvQualifyingPurchase+"="+*qualifyingPurchase)
	cmd.Env = append(cmd.Env, EnvTieBreak+"="+*tieBreak)

	if err := cmd.Run(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
				return true, status.ExitStatus()
			}
		}
		// If it's not an ExitError or we can't get the status, report a generic error
		fmt.Fprintf(os.Stderr, "Error executing external command %q: %v\n", externalCmdName, err)

		return true, 1 // Indicate that an attempt was made, but it failed
	}

	return true, 0 // External command executed successfully with exit code 0
}
