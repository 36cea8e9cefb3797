package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/espp"
	"github.com/google/subcommands"
)

type fmtCmd struct {
	output string
}

func (*fmtCmd) Name() string { return "fmt" }
func (*fmtCmd) Synopsis() string {
	return "validates and formats transaction files into a canonical form"
}
func (*fmtCmd) Usage() string {
	return `espp2 fmt [-o <output>] <file>...

  Validates and formats transaction files. This command reads all
  transactions, validates them, sorts them by date and ordering key, and
  writes them back in a canonical JSONL format.
  By default, files are formatted in-place. With -o, every file is merged
  into a single output, duplicated transactions removed.

Usage Examples:
$ espp2 fmt 2022.jsonl
$ espp2 fmt -o all.jsonl 2021.jsonl 2022.jsonl
`
}

func (p *fmtCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.output, "o", "", "Merge every file into this output instead of formatting in-place.")
}

func (p *fmtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: no transaction file to format")
		return subcommands.ExitUsageError
	}
	sources, err := decodeTransactionFiles(f.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if p.output != "" {
		if err := encodeTransactionFile(p.output, espp.MergeSources(sources...)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Merged %d files into %q.\n", len(sources), p.output)
		return subcommands.ExitSuccess
	}

	for i, path := range f.Args() {
		if err := encodeTransactionFile(path, sources[i]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Formatted %q.\n", path)
	}
	return subcommands.ExitSuccess
}

// encodeTransactionFile writes transactions to path in canonical form.
func encodeTransactionFile(path string, txs []espp.Transaction) error {
	var buf bytes.Buffer
	if err := espp.EncodeTransactions(&buf, txs); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing %q: %w", path, err)
	}
	return nil
}
