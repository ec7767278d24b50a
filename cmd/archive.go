package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redstone-tools/tickpack/scan/pack"
)

// archiveCmd exports an existing package as a zstd tarball
var archiveCmd = &cobra.Command{
	Use:   "archive <package> <file.tar.zst>",
	Short: "Export a compiled datapack as a .tar.zst archive",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		root, err := datapackRoot(outDir, propertiesPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		n, size, err := writeArchive(root, args[0], args[1])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Printf("%s: %d files, %s\n", args[1], n, humanize.Bytes(uint64(size)))
	},
}

// writeArchive archives <root>/<name> into path and returns the file count
// and archive size.
func writeArchive(root, name, path string) (int, int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, fmt.Errorf("creating archive: %w", err)
	}
	n, err := pack.Archive(root, name, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return n, info.Size(), nil
}

func init() {
	archiveCmd.Flags().StringVar(&outDir, "out", "", "Datapack root directory")
	archiveCmd.Flags().StringVar(&propertiesPath, "server-properties", "", "server.properties used to locate <level-name>/datapacks")
}
