package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redstone-tools/tickpack/scan"
	"github.com/redstone-tools/tickpack/scan/notify"
	"github.com/redstone-tools/tickpack/scan/pack"
	"github.com/redstone-tools/tickpack/scan/schedule"
	"github.com/redstone-tools/tickpack/scan/world"
)

var (
	// scan flags
	worldPath      string // World document (JSON or YAML)
	dbPath         string // SQLite grid, alternative to worldPath
	worldName      string // World identifier inside the SQLite grid
	startPos       []int  // Start wire position x,y,z
	packageName    string // Datapack name
	packageTitle   string // Free-form title normalized into a name
	outDir         string // Datapack root directory
	propertiesPath string // server.properties used to locate the datapack root
	notifyURL      string // Websocket listener for scan outcomes
	archivePath    string // Optional .tar.zst export of the finished package
)

// scanCmd runs a scan from a start wire and writes the datapack
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a circuit from a start wire and compile it into a datapack",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadScanConfig(configPath)
		if err != nil {
			logrus.Fatalf("Invalid scan config: %v", err)
		}
		name := packageName
		if name == "" {
			name = pack.NormalizeName(packageTitle)
		}
		if name == "" {
			logrus.Fatalf("Datapack name not provided. Use --name or --title.")
		}
		if len(startPos) != 3 {
			logrus.Fatalf("--start needs exactly three integers x,y,z, got %v", startPos)
		}
		root, err := datapackRoot(outDir, propertiesPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		cells, worldID, closeCells, err := openCells()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer closeCells()

		notifiers := notify.Multi{notify.Log{}}
		if notifyURL != "" {
			ws, err := notify.DialWebsocket(notifyURL)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			defer ws.Close()
			notifiers = append(notifiers, ws)
		}

		sink := pack.NewDir(root)
		session, err := scan.NewSession(name, cfg, cells, sink, notifiers)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		start := scan.At(worldID, startPos[0], startPos[1], startPos[2])
		if err := session.Start(start); err != nil {
			logrus.Fatalf("Scan not started: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		sched := schedule.NewTicker()
		session.Attach(sched)
		summary, err := session.Wait(ctx)
		sched.Wait()
		if errors.Is(err, scan.ErrCanceled) {
			logrus.Warnf("Scan canceled after %d steps", summary.Steps)
			return
		}
		if err != nil {
			logrus.Fatalf("Scan failed: %v", err)
		}

		fmt.Printf("package:  %s\n", summary.Package)
		fmt.Printf("steps:    %s\n", humanize.Comma(int64(summary.Steps)))
		fmt.Printf("events:   %s\n", humanize.Comma(int64(summary.Events)))
		fmt.Printf("leaves:   %s\n", humanize.Comma(int64(summary.Leaves)))
		fmt.Printf("duration: %s\n", summary.Duration.Round(time.Millisecond))
		if summary.Root != "" {
			fmt.Printf("entry:    function %s:%s (depth %d)\n", summary.Package, summary.Root, summary.Depth)
		}

		if archivePath != "" && summary.Root != "" {
			n, size, err := writeArchive(root, name, archivePath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			fmt.Printf("archive:  %s (%d files, %s)\n", archivePath, n, humanize.Bytes(uint64(size)))
		}
	},
}

// openCells opens the configured cell accessor and returns it with its
// world identifier and a close function.
func openCells() (scan.CellAccessor, string, func(), error) {
	switch {
	case worldPath != "" && dbPath != "":
		return nil, "", nil, fmt.Errorf("use either --world or --db, not both")
	case worldPath != "":
		g, err := world.LoadGrid(worldPath)
		if err != nil {
			return nil, "", nil, err
		}
		return g, g.World(), func() {}, nil
	case dbPath != "":
		g, err := world.OpenSQLite(dbPath, worldName)
		if err != nil {
			return nil, "", nil, err
		}
		return g, g.World(), func() { _ = g.Close() }, nil
	default:
		return nil, "", nil, fmt.Errorf("a world is required: --world <file> or --db <sqlite>")
	}
}

func init() {
	scanCmd.Flags().StringVar(&worldPath, "world", "", "World document (JSON or YAML)")
	scanCmd.Flags().StringVar(&dbPath, "db", "", "SQLite grid created by 'tickpack import'")
	scanCmd.Flags().StringVar(&worldName, "world-name", "overworld", "World identifier inside the SQLite grid")
	scanCmd.Flags().IntSliceVar(&startPos, "start", nil, "Position of the start wire as x,y,z")
	scanCmd.Flags().StringVar(&packageName, "name", "", "Datapack name (also namespace and score holder)")
	scanCmd.Flags().StringVar(&packageTitle, "title", "", "Free-form title, normalized into a datapack name when --name is empty")
	scanCmd.Flags().StringVar(&outDir, "out", "", "Datapack root directory")
	scanCmd.Flags().StringVar(&propertiesPath, "server-properties", "", "server.properties used to locate <level-name>/datapacks")
	scanCmd.Flags().StringVar(&notifyURL, "notify-ws", "", "Websocket URL receiving the scan outcome")
	scanCmd.Flags().StringVar(&archivePath, "archive", "", "Also export the finished package as .tar.zst")
}
