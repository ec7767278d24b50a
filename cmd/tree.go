package cmd

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redstone-tools/tickpack/scan"
	"github.com/redstone-tools/tickpack/scan/pack"
)

// treeCmd prints the dispatch tree of a compiled package
var treeCmd = &cobra.Command{
	Use:   "tree <package>",
	Short: "Print the dispatch tree of a compiled datapack",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadScanConfig(configPath)
		if err != nil {
			logrus.Fatalf("Invalid scan config: %v", err)
		}
		root, err := datapackRoot(outDir, propertiesPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := printTree(os.Stdout, pack.NewDir(root), args[0], cfg.EntryName); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// callPattern extracts the guarded range and callee of a selector line.
var callPattern = regexp.MustCompile(`matches (-?\d+)\.\.(-?\d+) run function [^:]+:(\S+)$`)

// printTree writes the tree rooted at the package's entry batch to w.
func printTree(w io.Writer, dir *pack.Dir, pkg, entry string) error {
	names, err := dir.Batches(pkg, pkg)
	if err != nil {
		return err
	}
	rootName := ""
	for _, n := range names {
		if strings.HasPrefix(n, entry+"_") {
			rootName = n
			break
		}
	}
	if rootName == "" {
		return fmt.Errorf("package %s has no %s_* entry batch", pkg, entry)
	}
	return printBatch(w, dir, pkg, rootName, 0)
}

func printBatch(w io.Writer, dir *pack.Dir, pkg, name string, depth int) error {
	lines, err := dir.ReadBatch(pkg, pkg, name)
	if err != nil {
		return err
	}
	var calls [][]string
	for _, line := range lines {
		if m := callPattern.FindStringSubmatch(line); m != nil {
			calls = append(calls, m)
		}
	}
	indent := strings.Repeat("  ", depth)
	if len(calls) == 0 {
		fmt.Fprintf(w, "%s%s (%d commands)\n", indent, name, len(lines))
		return nil
	}
	fmt.Fprintf(w, "%s%s\n", indent, name)
	for _, m := range calls {
		if _, _, ok := scan.ParseBatchName(m[3]); !ok {
			return fmt.Errorf("%s calls unknown batch %s", name, m[3])
		}
		if err := printBatch(w, dir, pkg, m[3], depth+1); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	treeCmd.Flags().StringVar(&outDir, "out", "", "Datapack root directory")
	treeCmd.Flags().StringVar(&propertiesPath, "server-properties", "", "server.properties used to locate <level-name>/datapacks")
}
