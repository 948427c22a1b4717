// Command gdw-audit audits warehouse tables from the command line.
//
// Usage:
//
//	gdw-audit run      TABLE [--persist]
//	gdw-audit trigger  TABLE [--wait]
//	gdw-audit sweep    [TABLE...] [--wait]
//	gdw-audit status   WORKFLOW_ID
//	gdw-audit report   WORKFLOW_ID
//	gdw-audit list     [--status S]
//	gdw-audit diff-report BASELINE.json CANDIDATE.json
//	gdw-audit validate
//
// Exit code 0 = pass or warn. Exit code 1 = fail verdict or report divergence.
// Exit code 2 = error.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
