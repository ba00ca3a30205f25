// Command admin is an offline operations tool for match data. It lists
// the contents of the runtime data directory, queries the match index
// sqlite directly, and reads live state from a running server's admin
// endpoint. It never mutates match logs; use the replay tool for
// verification and archiving.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "live":
			liveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sub := fs.String("dir", "matches", "subdirectory to list (matches, archives, index)")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, *sub))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}
