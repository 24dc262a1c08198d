package main

import (
	"fmt"
	"os"

	"github.com/baysumehmet/botdeck/internal/script"
)

func handleScript(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: botdeck script <export|import> <username> <file>")
		os.Exit(1)
	}
	cmd, username, path := args[0], args[1], args[2]

	store, closeStore, err := openStore()
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	switch cmd {
	case "export":
		tree, err := store.Script(username)
		if err != nil {
			fatal(err)
		}
		if tree.Len() == 0 {
			fatal(fmt.Errorf("no script saved for %s", username))
		}
		data, err := script.Marshal(tree)
		if err != nil {
			fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			fatal(err)
		}
		fmt.Printf("Exported script for %s to %s\n", username, path)
	case "import":
		data, err := os.ReadFile(path)
		if err != nil {
			fatal(err)
		}
		tree, err := script.Unmarshal(data)
		if err != nil {
			fatal(err)
		}
		if err := store.SaveScript(username, tree); err != nil {
			fatal(err)
		}
		fmt.Printf("Imported script for %s (%d nodes)\n", username, tree.Len())
	default:
		fmt.Fprintf(os.Stderr, "Unknown script command: %s\n", cmd)
		os.Exit(1)
	}
}
