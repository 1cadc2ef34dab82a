package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rmax-ai/pipeforge/pkg/client"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/duplicate"
	"github.com/rmax-ai/pipeforge/pkg/mcp"
)

var (
	Version   = "v0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: pipeforge <command> [flags]

Commands:
  hydrate     resolve a component reference (-url, -digest, -file, -name)
  duplicate   duplicate nodes of a graph component (-file, -nodes, -connection)
  components  list cached components, or show one with -id / -url
  library     load a component library: pipeforge library <url>
  export      write a snapshot of the component cache to the archive
  mcp         serve the MCP adapter on stdio
  version     print version information

The daemon endpoint is read from PIPEFORGE_ENDPOINT (default http://127.0.0.1:8095).
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	endpoint := os.Getenv("PIPEFORGE_ENDPOINT")
	c := client.NewClient(endpoint)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var err error
	switch args[0] {
	case "hydrate":
		err = runHydrate(ctx, c, args[1:], stdout)
	case "duplicate":
		err = runDuplicate(ctx, c, args[1:], stdout, stderr)
	case "components":
		err = runComponents(ctx, c, args[1:], stdout)
	case "library":
		err = runLibrary(ctx, c, args[1:], stdout)
	case "export":
		err = runExport(ctx, c, stdout)
	case "mcp":
		if endpoint == "" {
			endpoint = "http://127.0.0.1:8095"
		}
		err = mcp.NewServer(endpoint, Version).Serve()
	case "version":
		fmt.Fprintf(stdout, "pipeforge %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n%s", args[0], usage)
		return 1
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) && !errors.Is(err, client.ErrUnresolvable) && !errors.Is(err, client.ErrNotFound) {
			fmt.Fprintln(stderr, "Is pipeforge-d running?")
		}
		return 1
	}
	return 0
}

func runHydrate(ctx context.Context, c *client.Client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("hydrate", flag.ContinueOnError)
	url := fs.String("url", "", "URL the component is published at")
	digest := fs.String("digest", "", "SHA-256 digest of the component text")
	file := fs.String("file", "", "read component text from this file (- for stdin)")
	name := fs.String("name", "", "display name for the component")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ref := componentspec.ComponentReference{URL: *url, Digest: *digest, Name: *name}
	if *file != "" {
		text, err := readInput(*file)
		if err != nil {
			return err
		}
		ref.Text = text
	}
	if ref.URL == "" && ref.Digest == "" && ref.Text == "" {
		return errors.New("one of -url, -digest or -file is required")
	}

	hydrated, err := c.Hydrate(ctx, ref)
	if err != nil {
		return err
	}
	return printJSON(stdout, hydrated)
}

func runDuplicate(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("duplicate", flag.ContinueOnError)
	file := fs.String("file", "-", "graph component to edit (- for stdin)")
	nodes := fs.String("nodes", "", "comma-separated node ids to duplicate")
	connection := fs.String("connection", "all", "links the copies keep: none|internal|external|all")
	selected := fs.Bool("selected", false, "select the copies instead of the originals")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := duplicate.ParseMode(*connection)
	if err != nil {
		return err
	}
	var selection []duplicate.Node
	for _, id := range strings.Split(*nodes, ",") {
		if id = strings.TrimSpace(id); id != "" {
			selection = append(selection, duplicate.Node{ID: id, Selected: true})
		}
	}
	if len(selection) == 0 {
		return errors.New("-nodes is required")
	}

	text, err := readInput(*file)
	if err != nil {
		return err
	}

	resp, err := c.Duplicate(ctx, client.DuplicateRequest{
		ComponentText: text,
		Nodes:         selection,
		Config:        duplicate.Config{Selected: *selected, Connection: mode},
	})
	if err != nil {
		return err
	}

	for _, n := range selection {
		if newID, ok := resp.NodeIDMap[n.ID]; ok {
			fmt.Fprintf(stderr, "%s -> %s\n", n.ID, newID)
		}
	}
	_, err = io.WriteString(stdout, resp.ComponentText)
	return err
}

func runComponents(ctx context.Context, c *client.Client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("components", flag.ContinueOnError)
	id := fs.String("id", "", "show the record with this id")
	url := fs.String("url", "", "show the newest record fetched from this URL")
	limit := fs.Int("limit", 20, "number of records to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *id != "":
		rec, err := c.GetComponent(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(stdout, rec)
	case *url != "":
		rec, err := c.GetComponentByURL(ctx, *url)
		if err != nil {
			return err
		}
		return printJSON(stdout, rec)
	}

	records, err := c.ListComponents(ctx, *limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Fprintf(stdout, "%-24s %s  %s\n", shortID(rec.ID), time.UnixMilli(rec.UpdatedAt).UTC().Format(time.RFC3339), rec.URL)
	}
	return nil
}

func runLibrary(ctx context.Context, c *client.Client, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: pipeforge library <url>")
	}
	report, err := c.LoadLibrary(ctx, args[0])
	if err != nil {
		return err
	}
	for _, e := range report.Entries {
		status := "ok"
		if !e.Resolved {
			status = "unresolved"
		}
		fmt.Fprintf(stdout, "%-10s %s/%s\n", status, e.Folder, e.Name)
	}
	fmt.Fprintf(stdout, "Snapshot %s: %d resolved, %d unresolved\n", report.SnapshotID, report.Resolved, report.Unresolved)
	return nil
}

func runExport(ctx context.Context, c *client.Client, stdout io.Writer) error {
	res, err := c.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %d records to %s\n", res.Records, res.Key)
	return nil
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 24 {
		return id[:24]
	}
	return id
}
