// Command inspect prints the content of a chat-relay badger directory as a table.
// The database is opened read-only and may be inspected while the server runs.
package main

import (
	"chat-relay/infrastructure/storage"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH"`
	Limit          int    `envconfig:"INSPECT_LIMIT" default:"100"`
	// INSPECT_COLOURS colours the kind column
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

var entities = map[string]string{
	"users":    storage.UserPrefix,
	"groups":   storage.GroupPrefix,
	"messages": storage.MessagePrefix,
	"members":  storage.MemberPrefix,
	"all":      "",
}

var kindColours = map[storage.RecordKind]color.Color{
	storage.KindMessage:  color.FgCyan,
	storage.KindUser:     color.FgGreen,
	storage.KindGroup:    color.FgMagenta,
	storage.KindIndex:    color.FgGray,
	storage.KindSequence: color.FgGray,
	storage.KindRaw:      color.FgRed,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return err
	}
	if config.BadgerFilepath == "" {
		config.BadgerFilepath = database.DefaultPath
	}

	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	entity := flag.String("entity", "messages", "users, groups, messages, members or all")
	prefix := flag.String("prefix", "", "Raw key prefix, overrides -entity")
	limit := flag.Int("limit", config.Limit, "Maximum number of rows, 0 for all")
	flag.Parse()

	scanPrefix := *prefix
	if scanPrefix == "" {
		p, ok := entities[*entity]
		if !ok {
			return fmt.Errorf("unknown entity %q", *entity)
		}
		scanPrefix = p
	}

	db, err := storage.OpenReadOnly(*dbPath)
	if err != nil {
		return fmt.Errorf("opening badger at %s: %w", *dbPath, err)
	}
	defer db.Close()

	records, err := storage.ScanRecords(db, scanPrefix, *limit)
	if err != nil {
		return err
	}
	render(records, config.Colours)
	return nil
}

func render(records []storage.Record, colours bool) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "ID", "At", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, r := range records {
		kind := string(r.Kind)
		if c, ok := kindColours[r.Kind]; ok && colours {
			kind = c.Render(kind)
		}
		id, at := "", ""
		if r.ID != 0 {
			id = strconv.FormatInt(r.ID, 10)
		}
		if !r.At.IsZero() {
			at = r.At.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{r.Key, kind, id, at, r.Detail})
	}
	table.Render()
	fmt.Printf("%d entries\n", len(records))
}
