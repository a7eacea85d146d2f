package main

import (
	"fmt"
	"io"
)

// printShellHelp prints the shell command list.
func printShellHelp(w io.Writer) {
	fmt.Fprint(w, `Enter any of the following commands after the prompt > :
	o <f>  -- Open existing data file <f> or create one if not existed.
	i <k> <v> -- Insert <k> (an integer) as key and <v> (a string) as value.
	f <k>  -- Find the value under key <k>.
	p <k>  -- Print the path from the root to key <k> and its associated value.
	d <k>  -- Delete key <k> and its associated value.
	t -- Print the B+ tree.
	l -- Print the keys of the leaves (bottom row of the tree).
	q -- Quit. (Or use Ctl-D.)
	? -- Print this help message.
`)
}
