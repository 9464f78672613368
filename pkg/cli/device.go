package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/smoke-runner/pkg/config"
	"github.com/devicelab-dev/smoke-runner/pkg/core"
	"github.com/devicelab-dev/smoke-runner/pkg/device"
	"github.com/devicelab-dev/smoke-runner/pkg/viewtree"
)

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List attached Android devices",
	Description: `List the devices reported by adb, with model and SDK level for
online devices.

Examples:
  smoke-runner devices`,
	Action: runDevices,
}

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the view hierarchy of a connected device",
	Description: `Dump the live UI hierarchy of a device in JSON or CSV format, or
resolve one element to its bounds and tap point.

Element ids without a package are qualified with the configured package.

Examples:
  smoke-runner hierarchy
  smoke-runner hierarchy --compact
  smoke-runner hierarchy --device emulator-5554 --id start_ar`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"s"},
			Usage:   "Device serial (required when several devices are attached)",
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "Print only the element with this resource id",
		},
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
	},
	Action: runHierarchy,
}

func runDevices(c *cli.Context) error {
	ctx := c.Context
	infos, err := device.ListDevices(ctx, device.WithTimeout(commandTimeout(c)))
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No devices attached")
		return nil
	}

	for i, info := range infos {
		if info.State != "device" {
			continue
		}
		d, err := device.New(info.Serial, device.WithTimeout(commandTimeout(c)))
		if err != nil {
			return err
		}
		if detailed, err := d.Info(ctx); err == nil {
			detailed.State = info.State
			infos[i] = detailed
		}
	}

	printDevices(os.Stdout, infos)
	return nil
}

func printDevices(w io.Writer, infos []device.DeviceInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIAL\tSTATE\tMODEL\tSDK\tEMULATOR")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", info.Serial, info.State, dash(info.Model), dash(info.SDK), info.IsEmulator)
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runHierarchy(c *cli.Context) error {
	ctx := c.Context
	serial, err := resolveSingleDevice(ctx, c)
	if err != nil {
		return err
	}
	d, err := device.New(serial, device.WithTimeout(commandTimeout(c)))
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "smoke-runner-hierarchy-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "view.xml")
	if err := d.DumpHierarchy(ctx, path); err != nil {
		return err
	}
	snap, err := viewtree.ParseFile(path)
	if err != nil {
		return err
	}

	if id := getString(c, "id"); id != "" {
		return printElement(os.Stdout, snap, qualifyID(c, id))
	}
	return writeHierarchy(os.Stdout, snap, getBool(c, "compact"))
}

// resolveSingleDevice returns --device, or the only online device.
func resolveSingleDevice(ctx context.Context, c *cli.Context) (string, error) {
	if serial := getString(c, "device"); serial != "" {
		return serial, nil
	}
	infos, err := device.ListDevices(ctx, device.WithTimeout(commandTimeout(c)))
	if err != nil {
		return "", err
	}
	online := device.OnlineSerials(infos)
	switch len(online) {
	case 0:
		return "", core.ErrNoDevices
	case 1:
		return online[0], nil
	default:
		return "", fmt.Errorf("%d devices attached, choose one with --device (%s)", len(online), strings.Join(online, ", "))
	}
}

// qualifyID prefixes bare element names with the configured package.
func qualifyID(c *cli.Context, id string) string {
	if strings.Contains(id, ":id/") {
		return id
	}
	cfg, err := loadConfig(getString(c, "config"))
	if err != nil {
		cfg = config.Default()
	}
	return cfg.ResourceID(id)
}

func commandTimeout(c *cli.Context) time.Duration {
	if isSet(c, "command-timeout") {
		return config.Millis(getInt(c, "command-timeout"))
	}
	return config.Default().CommandTimeout()
}

type elementOutput struct {
	ResourceID string      `json:"resourceId"`
	Class      string      `json:"class,omitempty"`
	Bounds     core.Bounds `json:"bounds"`
	Center     core.Point  `json:"center"`
}

func printElement(w io.Writer, snap *viewtree.Snapshot, id string) error {
	n, err := snap.Locate(id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(elementOutput{
		ResourceID: n.ResourceID,
		Class:      n.Class,
		Bounds:     n.Bounds,
		Center:     n.Center(),
	})
}

// writeHierarchy prints every node as JSON, or as CSV when compact.
func writeHierarchy(w io.Writer, snap *viewtree.Snapshot, compact bool) error {
	if !compact {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Nodes)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"depth", "resource_id", "class", "text", "bounds", "center_x", "center_y", "clickable"}); err != nil {
		return err
	}
	for _, n := range snap.Nodes {
		center := n.Center()
		b := n.Bounds
		if err := cw.Write([]string{
			strconv.Itoa(n.Depth),
			n.ResourceID,
			n.Class,
			n.Text,
			fmt.Sprintf("[%d,%d][%d,%d]", b.X1, b.Y1, b.X2, b.Y2),
			strconv.Itoa(center.X),
			strconv.Itoa(center.Y),
			strconv.FormatBool(n.Clickable),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
