// Command espp2 computes the tax positions of ESPP participants.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/etnz/espp/cmd"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// fileFlags are the flags naming a file, for shell completion.
var fileFlags = map[string]bool{
	"t": true, "o": true, "w": true,
	"prior": true, "opening": true, "expected": true, "holdings": true, "json": true,
	"rates-file": true,
}

// completion describes the command line for shell completion, from the
// flag sets of the global flags and of every subcommand.
func completion() *complete.Command {
	predictors := func(f *flag.FlagSet) map[string]complete.Predictor {
		flags := make(map[string]complete.Predictor)
		f.VisitAll(func(fl *flag.Flag) {
			if fileFlags[fl.Name] {
				flags[fl.Name] = predict.Files("*")
			} else {
				flags[fl.Name] = predict.Something
			}
		})
		return flags
	}

	root := &complete.Command{Sub: make(map[string]*complete.Command), Flags: predictors(flag.CommandLine)}
	for _, c := range cmd.Commands() {
		f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(f)
		root.Sub[c.Name()] = &complete.Command{Flags: predictors(f), Args: predict.Files("*.jsonl")}
	}
	return root
}

func main() {
	// Exits when the shell is asking for completions.
	completion().Complete(path.Base(os.Args[0]))

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	if err := cmd.Configure(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	// Unknown subcommands may be provided by an extension.
	if sub := flag.Arg(0); sub != "" && !registered(commander, sub) {
		if found, code := cmd.RunExtension(sub, flag.Args()[1:]); found {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}

// registered returns true if name is a subcommand of commander.
func registered(commander *subcommands.Commander, name string) bool {
	found := false
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		if c.Name() == name {
			found = true
		}
	})
	return found
}
