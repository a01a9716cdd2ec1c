package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ochairo/sonarscan/internal/domain/services"
)

func runToolchains(_ context.Context, args []string) int {
	fs := flag.NewFlagSet("toolchains", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: sonarscan toolchains

List the supported toolchains and the labels that select them. Labels are
matched case-insensitively.
`)
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	listToolchains(os.Stdout)
	return 0
}

func listToolchains(out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOLCHAIN\tLABELS\tCOMMANDS")
	for _, tc := range services.NewScanService(nil, nil).Toolchains() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", tc.Toolchain, strings.Join(tc.Aliases, ", "), tc.Description)
	}
	_ = tw.Flush()
}
