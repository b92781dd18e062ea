// Command chidbtool is a small CLI for driving a chidb-format database
// file directly: creating it, growing additional table roots, and
// inserting, looking up, and scanning rows, without any SQL layer on top.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/go-chidb/chidb"
)

const version = "0.1.0"

var CLI struct {
	DB       string `name:"db" short:"f" help:"Path to the chidb database file" default:"chidb.db" type:"path"`
	PageSize uint16 `name:"page-size" help:"Page size used when the file doesn't exist yet" default:"1024"`
	Verbose  bool   `name:"verbose" short:"v" help:"Enable debug-level logging"`

	Create     CreateCmd     `cmd:"" help:"Create (or open and validate) a chidb database file"`
	NewTable   NewTableCmd   `cmd:"" help:"Allocate a fresh, empty table root page"`
	Insert     InsertCmd     `cmd:"" help:"Insert a row into a table"`
	Get        GetCmd        `cmd:"" help:"Look up a row by key"`
	Scan       ScanCmd       `cmd:"" help:"Scan a table's rows in key order"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if CLI.Verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

func openTree() (*chidb.BTree, error) {
	return chidb.Open(CLI.DB, chidb.Options{
		PageSize: CLI.PageSize,
		Logger:   newLogger(),
	})
}

type CreateCmd struct{}

func (c *CreateCmd) Run() error {
	bt, err := openTree()
	if err != nil {
		return err
	}
	defer bt.Close()
	fmt.Println("ok: table root page 1 ready")
	return nil
}

type NewTableCmd struct{}

func (c *NewTableCmd) Run() error {
	bt, err := openTree()
	if err != nil {
		return err
	}
	defer bt.Close()

	node, err := bt.NewNode(chidb.TableLeaf)
	if err != nil {
		return err
	}
	fmt.Printf("new table root page: %d\n", node.PageNumber())
	return nil
}

type InsertCmd struct {
	Root uint32 `arg:"" help:"table root page number"`
	Key  uint32 `arg:"" help:"row key"`
	Data string `arg:"" help:"row payload"`
}

func (c *InsertCmd) Run() error {
	bt, err := openTree()
	if err != nil {
		return err
	}
	defer bt.Close()

	if err := chidb.InsertInTable(bt, c.Root, c.Key, []byte(c.Data)); err != nil {
		return fmt.Errorf("insert key %d into table %d: %w", c.Key, c.Root, err)
	}
	return nil
}

type GetCmd struct {
	Root uint32 `arg:"" help:"table root page number"`
	Key  uint32 `arg:"" help:"row key"`
}

func (c *GetCmd) Run() error {
	bt, err := openTree()
	if err != nil {
		return err
	}
	defer bt.Close()

	data, err := chidb.Find(bt, c.Root, c.Key)
	if err != nil {
		return fmt.Errorf("get key %d from table %d: %w", c.Key, c.Root, err)
	}
	fmt.Println(string(data))
	return nil
}

type ScanCmd struct {
	Root uint32 `arg:"" help:"table root page number"`
}

func (c *ScanCmd) Run() error {
	bt, err := openTree()
	if err != nil {
		return err
	}
	defer bt.Close()

	cur := chidb.NewCursor(bt, c.Root)
	if err := cur.Rewind(); err != nil {
		return err
	}
	for cur.Valid() {
		key, err := cur.Key()
		if err != nil {
			return err
		}
		data, err := cur.Data()
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\n", key, string(data))
		if err := cur.Next(); err != nil {
			return err
		}
	}
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("chidbtool version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("chidbtool"),
		kong.Description("Inspect and drive a chidb-format database file"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
