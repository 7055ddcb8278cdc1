/*
Package cli holds the helpers shared by the charter commands: result
printing, exit codes and signal handling.

Commands print through a Printer so that --format json always yields a single
parseable document:

	p := cli.NewPrinter(cmd.OutOrStdout(), format)
	return p.Print(policy, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, policy.Content)
		return err
	})

Errors returned from commands are mapped to exit codes by ExitCode, using the
governance error kind when one is present.
*/
package cli
