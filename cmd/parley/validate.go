package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/parley/pkg/adapters/scripted"
	"github.com/aretw0/parley/pkg/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check handler definitions for errors",
	Long:  `Parses and compiles every handler definition in the directory and reports each problem found.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if len(args) > 0 {
			dir = args[0]
		}
		if dir == "" {
			dir = "handlers"
		}

		failed, err := runValidate(dir)
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d handler definition(s) failed validation", failed)
		}
		fmt.Println("All handler definitions are valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(dir string) (int, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, err
		}
		paths = append(paths, m...)
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no handler definitions found in %s", dir)
	}
	sort.Strings(paths)

	failed := 0
	for _, p := range paths {
		if err := validateFile(p); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s:\n", p)
			if errs := schema.ValidationErrors(err); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "  - %v\n", e)
				}
			} else {
				fmt.Fprintf(os.Stderr, "  - %v\n", err)
			}
			continue
		}
		fmt.Printf("%s: ok\n", p)
	}
	return failed, nil
}

func validateFile(path string) error {
	def, err := schema.LoadFile(path)
	if err != nil {
		return err
	}
	if _, err := scripted.New(def); err != nil {
		return err
	}
	if g := def.Graph(); g != nil {
		for _, id := range g.Unreachable() {
			fmt.Fprintf(os.Stderr, "%s: warning: node %q is unreachable from any start edge\n", path, id)
		}
	}
	return nil
}
